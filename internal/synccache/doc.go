// Package synccache tracks the last content fingerprint sent to each device
// for each zone, so unchanged zones are answered with "not modified" instead
// of re-transmitted bitmap bytes.
//
// The cache is partitioned by device key. Partitions are independent: calls
// for different devices never contend, and a partition's lookup-then-commit
// is atomic under its own lock. The partition count is bounded; inserting
// beyond the bound evicts the oldest partition by insertion order, which is
// enough to cap memory on a low-cardinality fleet.
package synccache
