package domain

import (
	"maps"
	"time"
)

// Record store collections.
const (
	CollectionAdmins = "admins"
	CollectionUsers  = "users"
)

// ProfileRecord is a document in the admins or users collection, keyed by
// normalized email.
type ProfileRecord struct {
	Name            string          `json:"name,omitempty" bson:"name,omitempty"`
	Email           string          `json:"email,omitempty" bson:"email,omitempty"`
	Phone           string          `json:"phone,omitempty" bson:"phone,omitempty"`
	Address         string          `json:"address,omitempty" bson:"address,omitempty"`
	Country         string          `json:"country,omitempty" bson:"country,omitempty"`
	BusinessName    string          `json:"business_name,omitempty" bson:"business_name,omitempty"`
	BusinessAddress string          `json:"business_address,omitempty" bson:"business_address,omitempty"`
	PhotoURL        string          `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	Role            Role            `json:"role,omitempty" bson:"role,omitempty"`
	Permissions     map[string]bool `json:"permissions,omitempty" bson:"permissions,omitempty"`
	Subscription    *Subscription   `json:"subscription,omitempty" bson:"subscription,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// SetOptions controls how a record is written.
type SetOptions struct {
	// Merge keeps fields of an existing document that the new record leaves empty.
	Merge bool
}

// ApplyTo copies the record's non-empty profile attributes into i. Identity
// fields (principal id, email) are deliberately left alone.
func (r *ProfileRecord) ApplyTo(i *Identity) {
	overlay(&i.DisplayName, r.Name)
	overlay(&i.PhotoURL, r.PhotoURL)
	overlay(&i.Phone, r.Phone)
	overlay(&i.Address, r.Address)
	overlay(&i.Country, r.Country)
	overlay(&i.BusinessName, r.BusinessName)
	overlay(&i.BusinessAddress, r.BusinessAddress)
	if r.Subscription != nil {
		i.Subscription = *r.Subscription
	}
	if !r.CreatedAt.IsZero() {
		i.CreatedAt = r.CreatedAt
	}
}

// PermissionsOrEmpty returns a copy of the record's permissions, never nil.
func (r *ProfileRecord) PermissionsOrEmpty() map[string]bool {
	if r.Permissions == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.Permissions)
}
