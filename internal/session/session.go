package session

import (
	"fmt"

	medshift_errors "medshift-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the explicit viewer context handed to the synchronization
// engine at construction. There is no process-wide session state; teardown
// of whatever holds the session closes its feed subscriptions.
type Session struct {
	ViewerID       uuid.UUID
	OrganizationID uuid.UUID
	DisplayName    string
}

type claims struct {
	OrganizationID string `json:"org_id"`
	DisplayName    string `json:"name"`
	jwt.RegisteredClaims
}

// FromToken verifies an HMAC-signed access token and extracts the viewer
// identity. The organization id is optional in the token; operations that
// need one call RequireOrganization.
func FromToken(secret, token string) (Session, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", medshift_errors.ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return Session{}, medshift_errors.ErrUnauthorized
	}

	viewerID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("%w: invalid subject", medshift_errors.ErrUnauthorized)
	}

	s := Session{ViewerID: viewerID, DisplayName: c.DisplayName}
	if c.OrganizationID != "" {
		orgID, err := uuid.Parse(c.OrganizationID)
		if err != nil {
			return Session{}, fmt.Errorf("%w: invalid org_id claim", medshift_errors.ErrUnauthorized)
		}
		s.OrganizationID = orgID
	}
	return s, nil
}

// RequireOrganization fails fast when the tenant cannot be attributed.
// This is checked before any network call is made on a send.
func (s Session) RequireOrganization() error {
	if s.OrganizationID == uuid.Nil {
		return medshift_errors.ErrOrgUnresolved
	}
	return nil
}
