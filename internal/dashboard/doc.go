// Package dashboard defines the snapshot value object that zone renderers
// consume, and the Provider interface that supplies it.
//
// A Snapshot carries everything needed to render any zone of the commute
// dashboard: the clock, weather, the journey legs and the status line. It is
// produced externally (transit feeds, weather APIs, commute planning) and is
// treated as immutable for the duration of one dispatch.
//
// Journey legs are a closed tagged variant (walk, train, tram, bus, coffee).
// Adding a transport mode means adding a LegKind constant and extending the
// exhaustive switches that render it — the compiler, not a string compare,
// decides what a leg looks like.
package dashboard
