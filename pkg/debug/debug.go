// Package debug gates verbose diagnostics by pipeline stage.
//
// Two independent knobs control output:
//
//   - WERKBANK_DEBUG (or debug.categories in config) selects WHICH
//     stages emit debug lines, as a comma-separated list:
//     completion, intent, synth, sandbox, shape, engine, auth,
//     transport, config, or all.
//   - WERKBANK_LOG_LEVEL (or log.level in config) selects HOW MUCH:
//     ERROR, WARN, INFO, DEBUG, or TRACE. TRACE additionally dumps
//     full untruncated payloads.
//
// Call sites stay cheap when the stage is off:
//
//	debug.Log("sandbox", "execute", "timeout", timeout)
//	if debug.Enabled("synth") { /* expensive formatting */ }
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. At TRACE, raw request and
// response bodies are written verbatim.
const LevelTrace = slog.LevelDebug - 4

// enabled is the active category set. Written only by Init (and the
// package init), read everywhere else.
var enabled map[string]struct{}

func init() {
	enabled = splitCategories(os.Getenv("WERKBANK_DEBUG"))
}

// Init applies config-file settings, with the environment winning when
// both are set, and installs the default slog handler at the chosen
// level.
func Init(configCategories, configLevel string) {
	cats := configCategories
	if env := os.Getenv("WERKBANK_DEBUG"); env != "" {
		cats = env
	}
	enabled = splitCategories(cats)

	level := configLevel
	if env := os.Getenv("WERKBANK_LOG_LEVEL"); env != "" {
		level = env
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether the stage emits debug output.
func Enabled(stage string) bool {
	if _, ok := enabled["all"]; ok {
		return true
	}
	_, ok := enabled[stage]
	return ok
}

// Log emits a debug line for the stage. A no-op when the stage is off.
func Log(stage, msg string, args ...any) {
	if !Enabled(stage) {
		return
	}
	slog.Debug(msg, append([]any{"debug", stage}, args...)...)
}

// Trace emits a trace-level line for the stage, visible only at
// WERKBANK_LOG_LEVEL=TRACE.
func Trace(stage, msg string, args ...any) {
	if !Enabled(stage) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", stage}, args...)...)
}

// TraceEnabled reports whether trace output is active for the stage.
func TraceEnabled(stage string) bool {
	return Enabled(stage) && slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes text straight to stderr, bypassing slog formatting, so
// payload dumps stay copy-pasteable. Active only at TRACE.
func Raw(stage, text string) {
	if !TraceEnabled(stage) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel maps a level name to its slog.Level. Unknown names fall
// back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled stages, sorted, for status reporting.
func Categories() []string {
	stages := make([]string, 0, len(enabled))
	for stage := range enabled {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	return stages
}

// Truncate shortens s to at most maxLen characters, marking the cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func splitCategories(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, stage := range strings.Split(s, ",") {
		stage = strings.ToLower(strings.TrimSpace(stage))
		if stage != "" {
			set[stage] = struct{}{}
		}
	}
	return set
}
