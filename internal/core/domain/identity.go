package domain

import (
	"maps"
	"time"
)

// Role is the resolved role of an identity.
type Role string

const (
	RoleUser     Role = "user"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// DefaultRole is assigned whenever no record states a role.
const DefaultRole = RoleUser

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// Subscription describes the plan attached to an identity. It is independent of Role.
type Subscription struct {
	Plan    string     `json:"plan" bson:"plan"`
	IsTrial bool       `json:"is_trial" bson:"is_trial"`
	EndsAt  *time.Time `json:"ends_at,omitempty" bson:"ends_at,omitempty"`
}

// Identity is the canonical view of the signed-in caller.
type Identity struct {
	PrincipalID     string          `json:"principal_id"`
	Email           string          `json:"email"`
	NormalizedEmail string          `json:"normalized_email"`
	DisplayName     string          `json:"display_name"`
	PhotoURL        string          `json:"photo_url,omitempty"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	Country         string          `json:"country"`
	BusinessName    string          `json:"business_name"`
	BusinessAddress string          `json:"business_address"`
	Role            Role            `json:"role"`
	IsAdmin         bool            `json:"is_admin"`
	Permissions     map[string]bool `json:"permissions"`
	Subscription    Subscription    `json:"subscription"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Clone returns a deep copy of i. A nil receiver yields nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.Permissions != nil {
		c.Permissions = maps.Clone(i.Permissions)
	}
	if i.Subscription.EndsAt != nil {
		t := *i.Subscription.EndsAt
		c.Subscription.EndsAt = &t
	}
	return &c
}

// MergeFrom overlays a freshly resolved identity onto i.
//
// Non-empty profile fields of next win, empty ones leave i untouched. Role,
// IsAdmin and Permissions always come from next. PrincipalID and CreatedAt
// of i are never replaced once set.
func (i *Identity) MergeFrom(next *Identity) {
	if next == nil {
		return
	}
	if i.PrincipalID == "" {
		i.PrincipalID = next.PrincipalID
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = next.CreatedAt
	}
	if next.Email != "" {
		i.Email = next.Email
		i.NormalizedEmail = NormalizeEmail(next.Email)
	}
	overlay(&i.DisplayName, next.DisplayName)
	overlay(&i.PhotoURL, next.PhotoURL)
	overlay(&i.Phone, next.Phone)
	overlay(&i.Address, next.Address)
	overlay(&i.Country, next.Country)
	overlay(&i.BusinessName, next.BusinessName)
	overlay(&i.BusinessAddress, next.BusinessAddress)

	i.Role = next.Role
	i.IsAdmin = next.IsAdmin
	i.Permissions = maps.Clone(next.Permissions)

	if next.Subscription.Plan != "" {
		i.Subscription = next.Subscription
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ProfilePatch is a partial, local-only update of the profile attributes.
// Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName     *string       `json:"display_name,omitempty"`
	PhotoURL        *string       `json:"photo_url,omitempty"`
	Phone           *string       `json:"phone,omitempty"`
	Address         *string       `json:"address,omitempty"`
	Country         *string       `json:"country,omitempty"`
	BusinessName    *string       `json:"business_name,omitempty"`
	BusinessAddress *string       `json:"business_address,omitempty"`
	Subscription    *Subscription `json:"subscription,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p ProfilePatch) Empty() bool {
	return p.DisplayName == nil && p.PhotoURL == nil && p.Phone == nil && p.Address == nil &&
		p.Country == nil && p.BusinessName == nil && p.BusinessAddress == nil && p.Subscription == nil
}

// Apply shallow-merges the patch into i.
func (p ProfilePatch) Apply(i *Identity) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&i.DisplayName, p.DisplayName)
	set(&i.PhotoURL, p.PhotoURL)
	set(&i.Phone, p.Phone)
	set(&i.Address, p.Address)
	set(&i.Country, p.Country)
	set(&i.BusinessName, p.BusinessName)
	set(&i.BusinessAddress, p.BusinessAddress)
	if p.Subscription != nil {
		i.Subscription = *p.Subscription
	}
}
