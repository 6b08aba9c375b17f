// Package api defines the core data model shared by all pipeline stages:
// intents, code templates, generated code, execution results, and the
// error taxonomy that governs which failures terminate a turn.
//
// The types here are plain data. Each turn owns exactly one Intent, one
// GeneratedCode, and one ExecutionResult; nothing is shared across turns
// except the caller-owned conversation context.
package api
