package sandbox

import (
	"regexp"
	"sort"
)

// SetupPreamble is prepended to every script when configured. It forces
// the non-interactive matplotlib backend and keeps warnings off stderr
// where they would be mistaken for failures.
const SetupPreamble = `import warnings
warnings.filterwarnings('ignore')
try:
    import matplotlib
    matplotlib.use('Agg')
except ImportError:
    pass
`

// importPattern matches top-level import and from-import statements.
var importPattern = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// modulePackages maps imported module names to the pip packages that
// provide them. Only modules outside the sandbox base image are listed;
// stdlib imports are ignored by omission.
var modulePackages = map[string]string{
	"numpy":      "numpy",
	"matplotlib": "matplotlib",
	"pandas":     "pandas",
	"requests":   "requests",
	"bs4":        "beautifulsoup4",
	"PIL":        "pillow",
	"playwright": "playwright",
	"scipy":      "scipy",
	"sklearn":    "scikit-learn",
	"seaborn":    "seaborn",
	"lxml":       "lxml",
	"openpyxl":   "openpyxl",
	"yaml":       "pyyaml",
}

// DetectRequirements scans code for imports of known third-party modules
// and returns the pip packages to install, sorted and deduplicated.
func DetectRequirements(code string) []string {
	seen := make(map[string]bool)
	for _, match := range importPattern.FindAllStringSubmatch(code, -1) {
		if pkg, ok := modulePackages[match[1]]; ok {
			seen[pkg] = true
		}
	}

	if len(seen) == 0 {
		return nil
	}
	packages := make([]string, 0, len(seen))
	for pkg := range seen {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	return packages
}
