// Package transport defines the handler contract and middleware chain for
// the werkbank HTTP transport layer.
//
// The transport layer bridges external clients and the turn engine. It
// deserializes incoming requests into the engine's turn types, dispatches
// them for processing, and serializes results back to the client as JSON.
//
// # Handler Contract
//
// TurnRunner is the single handler interface: the engine implements it,
// the HTTP adapter consumes it. Stored-turn retrieval goes through
// storage.TurnStore directly.
//
// # Middleware
//
// The middleware chain wraps TurnRunner with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. Custom middleware
// can be added for application-specific concerns.
package transport
