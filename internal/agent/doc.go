// Package agent implements the device-side control loop of the zone sync
// protocol: the state machine an e-ink display runs from boot, through
// pairing, to its steady fetch/render/sleep cycle.
//
// The loop is strictly single-threaded and cooperative. Every operation
// that can block (network bring-up, HTTP fetch, display redraw) runs under
// an explicit timeout and routes failure to the Error state instead of
// wedging the loop; there is no external cancel beyond the loop context.
//
// State that must survive a reboot (the bound server configuration) is
// persisted as versioned JSON written atomically. A state file with an
// unknown schema version is refused rather than guessed at, which sends the
// device back through pairing instead of running with misread config.
package agent
