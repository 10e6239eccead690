package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// expirySkew is subtracted from the expiry instant when deciding whether a
// credential is still usable, so a token about to lapse mid-request is
// refreshed proactively.
const expirySkew = 30 * time.Second

// Credential holds the bearer material for one user's calendar access plus
// the endpoint identifiers needed to reconstruct a refresh request. It is
// created on code exchange, replaced wholesale on refresh, and destroyed
// only by an explicit disconnect.
type Credential struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	TokenURL     string    `json:"token_uri"`
}

// Valid reports whether the access token can still be used directly.
func (c *Credential) Valid() bool {
	return c.AccessToken != "" && time.Now().Add(expirySkew).Before(c.Expiry)
}

// Refreshable reports whether the credential can renew itself.
func (c *Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// Token converts the credential into an oauth2 token for API clients.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
		TokenType:    "Bearer",
	}
}

// refreshConfig rebuilds the minimal oauth2 client config needed for a
// refresh exchange against the issuing token endpoint.
func (c *Credential) refreshConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL},
		Scopes:       c.Scopes,
	}
}
