// Package actor drives game entities through a per-frame lifecycle.
//
// Every entity implements Actor. Update and Render run once per frame in
// registration order. Interval behavior is opt-in: an actor that reports
// UsesTick() == true and owns a Timer gets OnTick whenever that timer fires,
// independent of frame rate. Actors that do not tick cost a single boolean
// check per frame.
//
// The Runtime is single-threaded: RunFrame must be called from one goroutine.
// Panics raised by an actor are not recovered.
package actor
