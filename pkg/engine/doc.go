// Package engine orchestrates the turn pipeline between the transport
// layer and the stage packages: intent classification, code synthesis,
// sandbox execution, and result shaping.
//
// The engine itself keeps no per-turn state beyond the session
// deduplication map. Turn records are persisted through an optional
// storage.TurnStore side channel; conversation context is reconstructed
// from stored turns when the caller supplies none.
package engine
