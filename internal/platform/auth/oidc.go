package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCAuthenticator accepts bearer ID tokens issued to the configured client.
type OIDCAuthenticator struct {
	verifier   *oidc.IDTokenVerifier
	rolesClaim string
	emailClaim string
}

func NewOIDCAuthenticator(ctx context.Context, cfg Config) (*OIDCAuthenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode != ModeOIDC {
		return nil, fmt.Errorf("auth mode must be oidc (got %q)", cfg.Mode)
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return NewVerifierAuthenticator(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), cfg.RolesClaim, cfg.EmailClaim)
}

// NewVerifierAuthenticator wraps an existing verifier, e.g. one built from a static key set.
func NewVerifierAuthenticator(verifier *oidc.IDTokenVerifier, rolesClaim, emailClaim string) (*OIDCAuthenticator, error) {
	if verifier == nil {
		return nil, errors.New("oidc verifier is required")
	}
	if strings.TrimSpace(rolesClaim) == "" {
		rolesClaim = "roles"
	}
	if strings.TrimSpace(emailClaim) == "" {
		emailClaim = "email"
	}
	return &OIDCAuthenticator{verifier: verifier, rolesClaim: rolesClaim, emailClaim: emailClaim}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	rawToken := tokenFromHeader(r)
	if rawToken == "" {
		return Identity{}, ErrUnauthenticated
	}
	idToken, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, err
	}
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, err
	}
	return Identity{
		Subject: idToken.Subject,
		Email:   stringClaim(claims, a.emailClaim),
		Roles:   rolesClaim(claims, a.rolesClaim),
	}, nil
}

// AllowAll is the authenticator used when AUTH_MODE=disabled.
type AllowAll struct{}

func (AllowAll) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return Identity{Subject: "anonymous", Roles: []string{RoleAdmin}}, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func rolesClaim(claims map[string]any, key string) []string {
	var raw []string
	switch typed := claims[key].(type) {
	case []any:
		for _, item := range typed {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(typed, ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
