package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// Refresher turns possibly-stale credentials into usable ones. It never
// hands back expired material: the result is either a credential whose
// expiry lies in the future or ErrReauthorizationRequired.
type Refresher struct {
	store  CredentialStore
	logger *slog.Logger
}

// NewRefresher wires the refresher with the store that receives refreshed
// material.
func NewRefresher(store CredentialStore, logger *slog.Logger) *Refresher {
	return &Refresher{store: store, logger: logger}
}

// EnsureValid returns cred unchanged when it is still valid, otherwise
// performs the refresh exchange, persists the result and returns it. A
// credential that is neither valid nor refreshable, or whose refresh the
// provider rejects, yields ErrReauthorizationRequired; the caller must
// discard it and prompt the user to reconnect.
func (r *Refresher) EnsureValid(ctx context.Context, key string, cred *Credential) (*Credential, error) {
	if cred.Valid() {
		return cred, nil
	}
	if !cred.Refreshable() {
		return nil, ErrReauthorizationRequired
	}

	// The token source owns the network call; no in-process lock is held
	// while it runs.
	refreshCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	source := cred.refreshConfig().TokenSource(refreshCtx, &oauth2.Token{
		RefreshToken: cred.RefreshToken,
	})
	token, err := source.Token()
	if err != nil {
		r.logger.Warn("token refresh failed", "user", key, "error", err)
		return nil, fmt.Errorf("%w: refresh exchange: %v", ErrReauthorizationRequired, err)
	}
	if !token.Expiry.After(time.Now()) {
		return nil, fmt.Errorf("%w: provider returned already-expired token", ErrReauthorizationRequired)
	}

	refreshed := &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       cred.Scopes,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     cred.TokenURL,
	}
	// Providers may rotate the refresh token; keep the old one otherwise.
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	if err := r.store.Save(ctx, key, refreshed); err != nil {
		return nil, fmt.Errorf("persist refreshed credential: %w", err)
	}

	r.logger.Info("credential refreshed", "user", key, "new_expiry", refreshed.Expiry.Format(time.RFC3339))
	return refreshed, nil
}
