package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sfuentes/agendabot/internal/auth"
)

type sinkStub struct {
	updates chan *tgbotapi.Update
}

func (s *sinkStub) HandleUpdate(update *tgbotapi.Update) {
	s.updates <- update
}

type notifierStub struct {
	notified chan string
}

func (n *notifierStub) NotifyAuthorized(userKey string) {
	n.notified <- userKey
}

type fixture struct {
	server   *httptest.Server
	broker   *auth.Broker
	store    auth.CredentialStore
	sink     *sinkStub
	notifier *notifierStub
}

func newFixture(t *testing.T, providerURL string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	enc, err := auth.NewEncryptor("test-secret")
	require.NoError(t, err)
	store, err := auth.NewFileStore(filepath.Join(t.TempDir(), "credentials.json"), enc)
	require.NoError(t, err)

	pending := auth.NewMemoryPendingStore(time.Minute)
	t.Cleanup(func() { _ = pending.Close() })

	broker := auth.NewBroker(&oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://bot.example.com/oauth2/callback",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  providerURL + "/auth",
			TokenURL: providerURL + "/token",
		},
	}, pending, logger)

	sink := &sinkStub{updates: make(chan *tgbotapi.Update, 1)}
	notifier := &notifierStub{notified: make(chan string, 1)}

	srv := New(0, "bot-token", broker, store, sink, notifier, logger)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &fixture{server: ts, broker: broker, store: store, sink: sink, notifier: notifier}
}

func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "granted-token",
			"refresh_token": "granted-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	payload := `{"update_id":7,"message":{"message_id":1,"text":"hola","chat":{"id":42},"from":{"id":42}}}`
	resp, err := http.Post(f.server.URL+"/webhook/bot-token", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case update := <-f.sink.updates:
		assert.Equal(t, 7, update.UpdateID)
		assert.Equal(t, "hola", update.Message.Text)
	case <-time.After(time.Second):
		t.Fatal("update never reached the sink")
	}
}

func TestWebhook_BadPayloadDropped(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	resp, err := http.Post(f.server.URL+"/webhook/bot-token", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	select {
	case <-f.sink.updates:
		t.Fatal("unparseable update must not reach the sink")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebhook_WrongPathToken(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	resp, err := http.Post(f.server.URL+"/webhook/other-token", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOAuthCallback_CompletesAndNotifies(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	authURL, err := f.broker.Begin(context.Background(), "42")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	resp, err := http.Get(f.server.URL + "/oauth2/callback?state=" + url.QueryEscape(state) + "&code=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "connected")

	cred, err := f.store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "granted-token", cred.AccessToken)

	select {
	case userKey := <-f.notifier.notified:
		assert.Equal(t, "42", userKey)
	case <-time.After(time.Second):
		t.Fatal("authorization notification never sent")
	}
}

func TestOAuthCallback_InvalidState(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	resp, err := http.Get(f.server.URL + "/oauth2/callback?state=forged&code=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	select {
	case <-f.notifier.notified:
		t.Fatal("invalid state must not notify anyone")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOAuthCallback_ReplayFails(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	authURL, err := f.broker.Begin(context.Background(), "42")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	first, err := http.Get(f.server.URL + "/oauth2/callback?state=" + url.QueryEscape(state) + "&code=abc")
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)
	<-f.notifier.notified

	second, err := http.Get(f.server.URL + "/oauth2/callback?state=" + url.QueryEscape(state) + "&code=xyz")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusBadRequest, second.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fakeProvider(t).URL)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
