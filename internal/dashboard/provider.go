package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Provider supplies the current dashboard snapshot. Implementations may hit
// transit and weather APIs; callers treat the returned snapshot as read-only.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Snapshot, error)

// Snapshot implements Provider.
func (f ProviderFunc) Snapshot(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// CachedProvider wraps a Provider and reuses its last snapshot for a short
// TTL. Device polls arrive in bursts (one request per zone); serving the
// burst from one snapshot keeps every zone of a refresh cycle consistent and
// spares the upstream feeds.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	last    *Snapshot
	fetched time.Time
}

// Cached wraps p with snapshot reuse for the given TTL. A non-positive ttl
// disables caching and every call passes through.
func Cached(p Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: p, ttl: ttl, now: time.Now}
}

// Snapshot returns the cached snapshot if it is still fresh, otherwise
// fetches a new one. A fetch error is returned as-is; a stale cached
// snapshot is never served in place of an error.
func (c *CachedProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && c.ttl > 0 && c.now().Sub(c.fetched) < c.ttl {
		return c.last, nil
	}

	snap, err := c.inner.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.last = snap
	c.fetched = c.now()
	return snap, nil
}

// DemoProvider produces a plausible fixed commute so a freshly installed
// server renders something before real feeds are configured. The clock and
// date track wall time; everything else is canned.
type DemoProvider struct {
	Now func() time.Time
}

// Snapshot implements Provider.
func (d *DemoProvider) Snapshot(_ context.Context) (*Snapshot, error) {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}

	return &Snapshot{
		GeneratedAt: now,
		Clock:       now.Format("15:04"),
		Date:        strings.ToUpper(now.Format("Mon 2 Jan")),
		Weather:     Weather{Condition: "PARTLY CLOUDY", TempC: 14.5},
		Summary:     "LEAVE IN 6 MIN - ON TIME",
		Legs: []Leg{
			{Kind: LegWalk, Destination: "STATION", DepartIn: 6, Duration: 8},
			{Kind: LegTrain, Route: "MERNDA", Destination: "SOUTHERN CROSS", DepartIn: 14, Duration: 22, Status: "on time"},
			{Kind: LegTram, Route: "86", Destination: "BOURKE ST", DepartIn: 38, Duration: 9},
			{Kind: LegCoffee, Destination: "MARKET LANE", DepartIn: 48, Duration: 10},
		},
		Status: "demo data  updated " + now.Format("15:04:05"),
	}, nil
}
