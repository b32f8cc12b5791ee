// Package pairing manages the short-lived codes that bind a new display
// device to its server configuration.
//
// A device in pairing mode shows a code on its panel; the setup wizard
// submits the device's configuration against that code; the device polls
// until the configuration arrives. Each code is single-use for writing: once
// paired, a late or duplicate wizard submission is rejected rather than
// overwriting configuration the device may already hold.
//
// Sessions expire on a TTL and are purged lazily during Poll and CreateCode
// calls, so minimal deployments need no background scheduler. Sessions are
// written through to a repository so a server restart does not strand a
// device mid-pairing.
package pairing
