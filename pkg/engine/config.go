package engine

// Config holds configuration for the turn engine.
type Config struct {
	// EnableClassification runs the intent classifier on each turn.
	// When false, a literal descriptor is used instead and template
	// matching degrades to fuzzy matching on the raw text.
	EnableClassification bool

	// DefaultSession is used when a request omits the session ID.
	// Empty means "default".
	DefaultSession string

	// ContextWindow is the number of recent turns loaded from the store
	// to build conversation context. Zero or negative means 3.
	ContextWindow int
}

// session returns the effective session for a caller-supplied ID.
func (c Config) session(id string) string {
	if id != "" {
		return id
	}
	if c.DefaultSession != "" {
		return c.DefaultSession
	}
	return "default"
}

// contextWindow returns the effective context window size.
func (c Config) contextWindow() int {
	if c.ContextWindow <= 0 {
		return 3
	}
	return c.ContextWindow
}
