// Package catalog holds the library of pre-vetted Python code templates
// and resolves which template, if any, fits a classified request.
package catalog

import (
	"regexp"
	"strings"

	"github.com/jkoenig/werkbank/pkg/api"
)

// Catalog is a registry of code templates keyed by name.
//
// A Catalog is populated at construction time and read-only afterwards,
// so it is safe for concurrent use.
type Catalog struct {
	templates map[string]*api.Template
}

// New creates a Catalog preloaded with the builtin templates.
func New() *Catalog {
	c := &Catalog{templates: make(map[string]*api.Template)}
	for _, t := range builtinTemplates() {
		c.templates[t.Name] = t
	}
	return c
}

// Register adds or replaces a template. Intended for tests and for
// deployments that extend the builtin set before serving.
func (c *Catalog) Register(t *api.Template) {
	c.templates[t.Name] = t
}

// Get returns the template with the given name, or nil.
func (c *Catalog) Get(name string) *api.Template {
	return c.templates[name]
}

// Names returns the registered template names. Order is unspecified.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	return names
}

// Lookup resolves a template for a classified intent. The composite key
// "<task>_<sub>" is tried first, then the bare task category. Returns nil
// when neither key is registered.
func (c *Catalog) Lookup(intent *api.Intent) *api.Template {
	if intent.SubCategory != "" {
		if t := c.templates[intent.TaskCategory+"_"+intent.SubCategory]; t != nil {
			return t
		}
	}
	return c.templates[intent.TaskCategory]
}

var urlPattern = regexp.MustCompile(`https?://`)

// FuzzyMatch scans the raw request text for keyword patterns and returns
// the first template whose rule fires. Rules are ordered most-specific
// first so that a screenshot request with a URL is not claimed by the
// scrape-title rule. Keyword sets carry both English and Chinese forms,
// matching the traffic the builtin templates were written for. Returns
// nil when no rule matches.
func (c *Catalog) FuzzyMatch(request string) *api.Template {
	lower := strings.ToLower(request)
	hasURL := urlPattern.MatchString(lower)

	// Screenshot requests need both a screenshot keyword and a URL.
	if containsAny(lower, "screenshot", "screen shot", "capture the page", "snap", "截图", "截屏", "抓图") && hasURL {
		return c.Get("web_screenshot")
	}

	// Title scraping fires on explicit scrape wording, or on a title
	// mention combined with a URL.
	if containsAny(lower, "scrape", "webpage", "web page", "网页", "抓取") ||
		(containsAny(lower, "title", "标题") && hasURL) {
		return c.Get("web_scrape_title")
	}

	// Plot requests for sine-like curves.
	if containsAny(lower, "sine", "sin(", "sinusoid", "curve", "waveform", "正弦", "曲线") {
		return c.Get("plot_sine_wave")
	}

	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
