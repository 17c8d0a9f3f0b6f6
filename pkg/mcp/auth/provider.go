// Package auth implements the client-side half of MCP authorization: a
// PKCE-capable OAuth provider consumed by the streamable-HTTP transport,
// plus a bearer-token authenticator for the server side. Token
// persistence across process restarts is a capability this package
// consumes (TokenStorage) rather than implements.
package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// AuthProvider is the capability a Client's transport consults to
// attach credentials to outbound requests and to drive the
// authorization-code flow when none are available yet.
type AuthProvider interface {
	// Token returns the current access token, refreshing it first if
	// it's expired and a refresh token is available.
	Token(ctx context.Context) (string, error)

	// Refresh forces a token refresh regardless of expiry.
	Refresh(ctx context.Context) error

	// RedirectToAuthorization returns the URL a user agent should be
	// sent to in order to start the authorization-code flow.
	RedirectToAuthorization(ctx context.Context, state string) (string, error)

	// FinishAuth completes the flow given the authorization code
	// returned to the redirect URI and the PKCE verifier that started it.
	FinishAuth(ctx context.Context, code, verifier string) error
}

// TokenStorage persists the provider's current token across restarts.
// The core never implements this; a host application supplies one
// backed by whatever it already uses (file, keychain, database row).
type TokenStorage interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// PKCEProvider is an AuthProvider implementing RFC 7636 PKCE on top of
// golang.org/x/oauth2. One PKCEProvider handles one authorization-code
// flow at a time; RedirectToAuthorization generates a fresh verifier
// each call, so concurrent flows on the same provider will race.
type PKCEProvider struct {
	config  oauth2.Config
	storage TokenStorage

	mu       sync.Mutex
	verifier string
	token    *oauth2.Token
}

// NewPKCEProvider builds a provider for the given OAuth client config.
// storage may be nil, in which case tokens live only in memory for the
// process lifetime.
func NewPKCEProvider(cfg oauth2.Config, storage TokenStorage) *PKCEProvider {
	return &PKCEProvider{config: cfg, storage: storage}
}

func (p *PKCEProvider) RedirectToAuthorization(ctx context.Context, state string) (string, error) {
	verifier := oauth2.GenerateVerifier()

	p.mu.Lock()
	p.verifier = verifier
	p.mu.Unlock()

	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

func (p *PKCEProvider) FinishAuth(ctx context.Context, code, verifier string) error {
	if verifier == "" {
		p.mu.Lock()
		verifier = p.verifier
		p.mu.Unlock()
	}
	if verifier == "" {
		return fmt.Errorf("auth: finish auth: no pkce verifier for this flow")
	}

	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("auth: exchange code: %w", err)
	}

	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()

	if p.storage != nil {
		if err := p.storage.Save(ctx, tok); err != nil {
			return fmt.Errorf("auth: persist token: %w", err)
		}
	}
	return nil
}

func (p *PKCEProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()

	if tok == nil && p.storage != nil {
		loaded, err := p.storage.Load(ctx)
		if err != nil {
			return "", fmt.Errorf("auth: load token: %w", err)
		}
		tok = loaded
		p.mu.Lock()
		p.token = tok
		p.mu.Unlock()
	}
	if tok == nil {
		return "", fmt.Errorf("auth: not authorized: call RedirectToAuthorization then FinishAuth")
	}

	if !tok.Valid() {
		if err := p.Refresh(ctx); err != nil {
			return "", err
		}
		p.mu.Lock()
		tok = p.token
		p.mu.Unlock()
	}
	return tok.AccessToken, nil
}

func (p *PKCEProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()
	if tok == nil {
		return fmt.Errorf("auth: refresh: no token to refresh")
	}

	refreshed, err := p.config.TokenSource(ctx, tok).Token()
	if err != nil {
		return fmt.Errorf("auth: refresh token: %w", err)
	}

	p.mu.Lock()
	p.token = refreshed
	p.mu.Unlock()

	if p.storage != nil {
		if err := p.storage.Save(ctx, refreshed); err != nil {
			return fmt.Errorf("auth: persist refreshed token: %w", err)
		}
	}
	return nil
}
