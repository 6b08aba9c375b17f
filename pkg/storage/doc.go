// Package storage defines the TurnStore interface for persisting turn
// records, plus utilities shared across the adapter implementations:
// sentinel errors, list options, and tenant context helpers.
//
// Persistence is an optional side channel of the pipeline. Adapters live
// in the memory and postgres subpackages.
package storage
