package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sfuentes/agendabot/internal/auth"
)

// UpdateSink receives parsed Telegram updates. The router acknowledges
// the webhook before the sink's heavy work runs.
type UpdateSink interface {
	HandleUpdate(update *tgbotapi.Update)
}

// Notifier announces a completed authorization back to the chat
// transport.
type Notifier interface {
	NotifyAuthorized(userKey string)
}

// Server is the single concurrent entry point. It demultiplexes the
// Telegram webhook and the OAuth redirect onto independent handlers; a
// slow chat pipeline never delays a callback because each request runs on
// its own goroutine and the stores do their own locking.
type Server struct {
	httpServer *http.Server
	broker     *auth.Broker
	store      auth.CredentialStore
	sink       UpdateSink
	notifier   Notifier
	logger     *slog.Logger
	botToken   string
}

// New wires the router. botToken doubles as the webhook path secret, the
// same scheme the Telegram bot framework uses.
func New(
	port int,
	botToken string,
	broker *auth.Broker,
	store auth.CredentialStore,
	sink UpdateSink,
	notifier Notifier,
	logger *slog.Logger,
) *Server {
	s := &Server{
		broker:   broker,
		store:    store,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		botToken: botToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/{token}", s.handleWebhook)
	mux.HandleFunc("GET /oauth2/callback", s.handleOAuthCallback)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook parses a Telegram update and hands it off. Parse failures
// get a client error and the update is dropped; Telegram owns redelivery.
// The 200 goes out immediately so slow LLM or calendar work cannot make
// Telegram time out and duplicate-deliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("token") != s.botToken {
		http.NotFound(w, r)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("dropping unparseable update", "error", err)
		http.Error(w, "bad update payload", http.StatusBadRequest)
		return
	}

	go s.sink.HandleUpdate(&update)
	w.WriteHeader(http.StatusOK)
}

// handleOAuthCallback completes the authorization hand-off: consume the
// state token, exchange the code, persist the credential and notify the
// user out-of-band.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	cred, userKey, err := s.broker.Complete(r.Context(), r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidState):
			// Uniform response; never reveals whether the state existed.
			s.logger.Warn("oauth callback with invalid state")
			writeErrorPage(w, http.StatusBadRequest,
				"This authorization link is invalid or has expired. Please run /connect again in the chat.")
		default:
			s.logger.Error("oauth completion failed", "user", userKey, "error", err)
			writeErrorPage(w, http.StatusBadGateway,
				"Authorization could not be completed. Please run /connect again in the chat.")
		}
		return
	}

	if err := s.store.Save(r.Context(), userKey, cred); err != nil {
		s.logger.Error("failed to persist credential", "user", userKey, "error", err)
		writeErrorPage(w, http.StatusBadGateway,
			"Something went wrong while saving your authorization. Please try again later.")
		return
	}

	go s.notifier.NotifyAuthorized(userKey)
	writeSuccessPage(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}
