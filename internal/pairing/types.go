package pairing

import "time"

// Status is the lifecycle state of a pairing session.
type Status string

// Pairing session states.
const (
	StatusWaiting Status = "waiting"
	StatusPaired  Status = "paired"
	StatusExpired Status = "expired"
)

// Config is the device configuration delivered through a pairing session.
// WebhookURL is the device's zone-fetch base; Extra carries any additional
// wizard-collected settings opaquely.
type Config struct {
	WebhookURL string            `json:"webhook_url"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Session tracks one pairing code from creation to expiry.
type Session struct {
	Code      string    `json:"code"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is TTL after creation while waiting, and TTL after
	// PairedAt once configuration is bound.
	ExpiresAt time.Time  `json:"expires_at"`
	PairedAt  *time.Time `json:"paired_at,omitempty"`
	Config    *Config    `json:"config,omitempty"`
}

// Live reports whether the session still occupies its code at the given
// instant. Expired sessions free their code for reuse.
func (s *Session) Live(now time.Time) bool {
	return s.Status != StatusExpired && now.Before(s.ExpiresAt)
}

// DeepCopy returns a copy sharing no mutable state with s.
func (s *Session) DeepCopy() *Session {
	out := *s
	if s.PairedAt != nil {
		t := *s.PairedAt
		out.PairedAt = &t
	}
	if s.Config != nil {
		cfg := *s.Config
		if s.Config.Extra != nil {
			cfg.Extra = make(map[string]string, len(s.Config.Extra))
			for k, v := range s.Config.Extra {
				cfg.Extra[k] = v
			}
		}
		out.Config = &cfg
	}
	return &out
}
