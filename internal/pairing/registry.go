package pairing

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"
)

// codeAlphabet excludes visually confusable characters (0/O, 1/I/L). Codes
// are shown on a low-contrast e-ink panel and typed by hand.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed pairing code length.
const CodeLength = 6

// DefaultTTL is how long a session lives, paired or not, before expiring.
const DefaultTTL = 10 * time.Minute

// maxCodeAttempts bounds collision retries during code generation. With a
// 31^6 code space and a handful of live sessions this never triggers in
// practice.
const maxCodeAttempts = 20

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Repository persists pairing sessions so an in-flight pairing survives a
// server restart. Implementations must be safe for concurrent use.
type Repository interface {
	// Save inserts or replaces a session by code.
	Save(ctx context.Context, s *Session) error

	// Delete removes a session by code. Deleting an absent code is not an
	// error.
	Delete(ctx context.Context, code string) error

	// List retrieves all persisted sessions.
	List(ctx context.Context) ([]Session, error)
}

// Registry manages pairing sessions with an in-memory working set written
// through to a repository. All public methods are thread-safe.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	repo     Repository
	ttl      time.Duration
	now      func() time.Time
	logger   Logger
}

// NewRegistry creates a pairing registry backed by repo. A nil repo keeps
// sessions in memory only. A non-positive ttl falls back to DefaultTTL.
func NewRegistry(repo Repository, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]*Session),
		repo:     repo,
		ttl:      ttl,
		now:      time.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Restore loads persisted sessions into the working set. Call once on
// startup before serving. Sessions already expired on disk are dropped.
func (r *Registry) Restore(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	stored, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading pairing sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	restored := 0
	for i := range stored {
		s := stored[i]
		if !s.Live(now) {
			continue
		}
		r.sessions[s.Code] = s.DeepCopy()
		restored++
	}
	r.logger.Info("pairing sessions restored", "count", restored, "skipped", len(stored)-restored)
	return nil
}

// purgeLocked drops expired sessions from memory and the repository.
// Caller holds r.mu.
func (r *Registry) purgeLocked(ctx context.Context) {
	now := r.now()
	for code, s := range r.sessions {
		if s.Live(now) {
			continue
		}
		delete(r.sessions, code)
		if r.repo != nil {
			if err := r.repo.Delete(ctx, code); err != nil {
				r.logger.Warn("purging expired pairing session", "code", code, "error", err)
			}
		}
	}
}

// randomCode generates one candidate code from the restricted alphabet.
func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// CreateCode allocates a new pairing session and returns its code. The code
// is unique among all currently live sessions, including under concurrent
// creation.
func (r *Registry) CreateCode(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(ctx)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}
		if _, taken := r.sessions[code]; taken {
			continue
		}

		now := r.now()
		s := &Session{
			Code:      code,
			Status:    StatusWaiting,
			CreatedAt: now,
			ExpiresAt: now.Add(r.ttl),
		}
		if r.repo != nil {
			if err := r.repo.Save(ctx, s); err != nil {
				return nil, fmt.Errorf("persisting pairing session: %w", err)
			}
		}
		r.sessions[code] = s

		r.logger.Info("pairing code created", "code", code, "expires_at", s.ExpiresAt)
		return s.DeepCopy(), nil
	}
	return nil, ErrCodeSpaceExhausted
}

// normalize upper-cases a code so devices and wizards can differ in case.
func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Poll returns the session for code. Devices call this on an interval while
// in pairing mode. Expired or unknown codes return ErrNotFound.
func (r *Registry) Poll(ctx context.Context, code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(ctx)

	s, ok := r.sessions[normalize(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.DeepCopy(), nil
}

// SubmitConfig binds configuration to a waiting code. A second submission
// for the same code returns ErrAlreadyPaired; the first bound configuration
// is never overwritten.
func (r *Registry) SubmitConfig(ctx context.Context, code string, cfg Config) error {
	if cfg.WebhookURL == "" {
		return ErrInvalidConfig
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(ctx)

	s, ok := r.sessions[normalize(code)]
	if !ok {
		return ErrNotFound
	}
	if s.Status == StatusPaired {
		return ErrAlreadyPaired
	}

	now := r.now()
	s.Status = StatusPaired
	s.PairedAt = &now
	// Pairing restarts the expiry clock: a code bound late in its window
	// must stay pollable long enough for the device's next poll.
	s.ExpiresAt = now.Add(r.ttl)
	s.Config = &cfg
	if r.repo != nil {
		if err := r.repo.Save(ctx, s); err != nil {
			return fmt.Errorf("persisting paired session: %w", err)
		}
	}

	r.logger.Info("pairing code bound", "code", s.Code)
	return nil
}

// Live returns the number of live sessions. Intended for health reporting.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for _, s := range r.sessions {
		if s.Live(now) {
			n++
		}
	}
	return n
}
