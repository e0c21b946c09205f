package gateway

import (
	"crypto/subtle"

	"teller/internal/domain"
	"teller/internal/infra/config"
)

// Authenticator resolves a bearer token to a caller identity.
type Authenticator interface {
	Authenticate(token string) (*domain.Identity, error)
}

type authEntry struct {
	token []byte
	id    domain.Identity
}

// StaticTokenAuth authenticates callers against a static token list using
// constant-time comparison to prevent timing attacks. Tokens come from
// config; credential issuance lives outside this system.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from config token entries.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(tokens))}
	for _, t := range tokens {
		roles := make([]domain.AuthRole, 0, len(t.Roles))
		for _, r := range t.Roles {
			roles = append(roles, domain.AuthRole(r))
		}
		a.entries = append(a.entries, authEntry{
			token: []byte(t.Token),
			id: domain.Identity{
				TenantID: t.TenantID,
				UserID:   t.UserID,
				Roles:    roles,
			},
		})
	}
	return a
}

// Authenticate returns the resolved identity if the token is valid.
func (s *StaticTokenAuth) Authenticate(token string) (*domain.Identity, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			id := e.id
			return &id, nil
		}
	}
	return nil, domain.ErrAuthInvalid
}
