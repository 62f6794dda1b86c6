package domain

import "time"

// ProviderPrincipal is the authenticated principal as reported by the identity
// provider. It is read-only input to role resolution.
type ProviderPrincipal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// DisplayProfile holds the provider-side profile fields that can be updated
// after sign-up.
type DisplayProfile struct {
	DisplayName string
	PhotoURL    string
}

// Credential is the identity provider's own account record. PasswordHash is
// empty for accounts that only ever signed in through OAuth.
type Credential struct {
	PrincipalID  string
	Email        string
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the provider principal view of the credential.
func (c *Credential) Principal() *ProviderPrincipal {
	return &ProviderPrincipal{
		ID:          c.PrincipalID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
	}
}
