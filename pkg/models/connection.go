package models

import "time"

// Provider identifies a publishing platform.
type Provider string

const (
	ProviderTwitter  Provider = "twitter"
	ProviderLinkedIn Provider = "linkedin"
)

// Providers lists every platform the pipeline publishes to.
var Providers = []Provider{ProviderTwitter, ProviderLinkedIn}

// SocialConnection is one connected publishing account. A user may hold
// several per provider; exactly one per (user, provider) is the default used
// when the reviewer picks no explicit account.
type SocialConnection struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Provider    Provider   `json:"provider"`
	AccountID   string     `json:"account_id"`
	DisplayName string     `json:"display_name"`
	Label       string     `json:"label,omitempty"`
	TokenJSON   string     `json:"-"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsDefault   bool       `json:"is_default"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the connection's token is past its expiry. A
// connection without an expiry never expires.
func (c *SocialConnection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
