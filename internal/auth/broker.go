package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// exchangeTimeout bounds the code and refresh exchanges so a hung provider
// call fails instead of staying pending.
const exchangeTimeout = 30 * time.Second

// stateTokenBytes gives 256 bits of entropy per state token.
const stateTokenBytes = 32

// Broker manages the three-legged OAuth hand-off: Begin issues a one-time
// state token bound to the initiating user and returns the provider
// authorization URL; Complete consumes the provider redirect and mints a
// Credential. Persisting the credential is the caller's job.
type Broker struct {
	config  *oauth2.Config
	pending PendingStore
	logger  *slog.Logger
}

// NewBroker wires the broker with the provider client configuration and an
// injected pending-authorization store.
func NewBroker(config *oauth2.Config, pending PendingStore, logger *slog.Logger) *Broker {
	return &Broker{config: config, pending: pending, logger: logger}
}

// Begin starts an authorization attempt for userKey and returns the URL
// the user must open out-of-band. Offline access and explicit consent are
// always requested so the exchange yields a refresh token. Does not block
// on the provider.
func (b *Broker) Begin(ctx context.Context, userKey string) (string, error) {
	state, err := RandomToken(stateTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	if err := b.pending.Put(ctx, state, userKey); err != nil {
		return "", fmt.Errorf("record pending authorization: %w", err)
	}

	authURL := b.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	b.logger.Info("authorization started", "user", userKey)
	return authURL, nil
}

// Complete consumes the provider redirect query. The state token is
// removed before the exchange; on exchange failure it is never
// re-inserted, so the user must restart with Begin.
func (b *Broker) Complete(ctx context.Context, query url.Values) (*Credential, string, error) {
	state := query.Get("state")
	if state == "" {
		return nil, "", ErrInvalidState
	}

	userKey, ok, err := b.pending.Consume(ctx, state)
	if err != nil {
		return nil, "", fmt.Errorf("consume pending authorization: %w", err)
	}
	if !ok {
		// Never issued, already consumed, or forged; the error does not
		// say which.
		return nil, "", ErrInvalidState
	}

	code := query.Get("code")
	if code == "" {
		if provErr := query.Get("error"); provErr != "" {
			b.logger.Warn("authorization denied by provider", "user", userKey, "error", provErr)
			return nil, userKey, fmt.Errorf("%w: provider returned %q", ErrExchangeFailed, provErr)
		}
		return nil, userKey, fmt.Errorf("%w: redirect carried no code", ErrExchangeFailed)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := b.config.Exchange(exchangeCtx, code)
	if err != nil {
		b.logger.Error("code exchange failed", "user", userKey, "error", err)
		return nil, userKey, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	cred := &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       b.config.Scopes,
		ClientID:     b.config.ClientID,
		ClientSecret: b.config.ClientSecret,
		TokenURL:     b.config.Endpoint.TokenURL,
	}

	b.logger.Info("authorization completed", "user", userKey, "has_refresh_token", cred.RefreshToken != "")
	return cred, userKey, nil
}
