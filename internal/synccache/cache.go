package synccache

import "sync"

// DefaultMaxDevices bounds the partition count when no limit is configured.
const DefaultMaxDevices = 10

// partition holds one device's zone fingerprints behind its own lock.
type partition struct {
	mu    sync.Mutex
	zones map[string]string // zone id -> fingerprint
	tick  uint64            // logical tick of the last commit
}

// Cache is a bounded, device-partitioned fingerprint store.
type Cache struct {
	mu         sync.Mutex
	partitions map[string]*partition
	order      []string // device keys in insertion order, for eviction
	max        int
	tick       uint64
}

// New creates a cache holding at most maxDevices partitions. Values below 1
// fall back to DefaultMaxDevices.
func New(maxDevices int) *Cache {
	if maxDevices < 1 {
		maxDevices = DefaultMaxDevices
	}
	return &Cache{
		partitions: make(map[string]*partition),
		max:        maxDevices,
	}
}

// part returns the partition for deviceKey, creating it and evicting the
// oldest partition if the bound is exceeded.
func (c *Cache) part(deviceKey string) *partition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.partitions[deviceKey]; ok {
		return p
	}

	if len(c.partitions) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.partitions, oldest)
	}

	p := &partition{zones: make(map[string]string)}
	c.partitions[deviceKey] = p
	c.order = append(c.order, deviceKey)
	return p
}

// Lookup returns the stored fingerprint for (deviceKey, zoneID), if any.
func (c *Cache) Lookup(deviceKey, zoneID string) (string, bool) {
	c.mu.Lock()
	p, ok := c.partitions[deviceKey]
	c.mu.Unlock()
	if !ok {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fp, ok := p.zones[zoneID]
	return fp, ok
}

// Commit stores fingerprint for (deviceKey, zoneID), creating the device
// partition if needed.
func (c *Cache) Commit(deviceKey, zoneID, fingerprint string) {
	p := c.part(deviceKey)

	c.mu.Lock()
	c.tick++
	tick := c.tick
	c.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.zones[zoneID] = fingerprint
	p.tick = tick
}

// ShouldSend reports whether fresh bytes must be transmitted: always under
// force, on first contact for the zone, or when the fingerprint changed.
func (c *Cache) ShouldSend(deviceKey, zoneID, fingerprint string, force bool) bool {
	if force {
		return true
	}
	stored, ok := c.Lookup(deviceKey, zoneID)
	return !ok || stored != fingerprint
}

// Sync is the atomic send-decision: it decides whether (deviceKey, zoneID,
// fingerprint) must be transmitted and, if so, commits the fingerprint in
// the same critical section. Concurrent callers for the same device cannot
// interleave between the decision and the commit.
func (c *Cache) Sync(deviceKey, zoneID, fingerprint string, force bool) bool {
	p := c.part(deviceKey)

	c.mu.Lock()
	c.tick++
	tick := c.tick
	c.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.zones[zoneID]
	if !force && ok && stored == fingerprint {
		return false
	}
	p.zones[zoneID] = fingerprint
	p.tick = tick
	return true
}

// Invalidate drops every partition. Each device's next poll sees
// first-contact state and receives fresh content for all zones.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitions = make(map[string]*partition)
	c.order = nil
}

// Devices returns the number of live partitions.
func (c *Cache) Devices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.partitions)
}
