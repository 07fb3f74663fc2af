package model

import (
	"time"

	"github.com/google/uuid"
)

// User is created on first successful OIDC login, keyed by issuer+subject.
type User struct {
	ID          uuid.UUID `json:"id"`
	OIDCIssuer  string    `json:"oidc_issuer"`
	OIDCSubject string    `json:"oidc_subject"`
	Email       *string   `json:"email,omitempty"`
	Name        *string   `json:"name,omitempty"`
	Picture     *string   `json:"picture,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
