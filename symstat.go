// Package symstat is the compute core of a per-symbol streaming
// statistics engine. For each named symbol it ingests ordered batches
// of floating-point observations and answers point-in-time queries of
// the form "over the last 10^k observations, return {min, max, last,
// average, variance}".
//
// The package exports exactly two moving parts: a Dispatcher, which
// routes (symbol, command) envelopes to one owning worker per symbol,
// and the Aggregator in the core subpackage, which each worker uses as
// its exclusive, lock-free backing store. Everything else — HTTP
// transport, configuration, process bootstrap — is a collaborator
// built on top of this package, not part of it.
package symstat

// Symbol is an opaque, hashable, case-sensitive identifier for an
// observation stream. Symbols are never deleted once created.
type Symbol string

// Stats is the response to a GetStats query: the elementwise
// statistics over a suffix window, or all zeros when the window held
// no observations.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Last float64 `json:"last"`
	Avg  float64 `json:"avg"`
	Var  float64 `json:"var"`
}
