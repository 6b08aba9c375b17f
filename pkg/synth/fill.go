package synth

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jkoenig/werkbank/pkg/api"
)

// FillTemplate substitutes {name} placeholders in the template body with
// Python literals rendered from params, falling back to declared defaults.
//
// Substitution is a single left-to-right pass: placeholders introduced by
// substituted values are never expanded again, so a parameter value
// containing "{other}" cannot trigger a second round of replacement.
func FillTemplate(tpl *api.Template, params map[string]any) string {
	values := make(map[string]string)

	for name, spec := range tpl.Parameters {
		if spec.Default != nil {
			values[name] = RenderPythonValue(spec.Default)
		}
	}
	for name, value := range params {
		values[name] = RenderPythonValue(value)
	}

	if len(values) == 0 {
		return tpl.CodeBody
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, regexp.QuoteMeta(name))
	}
	sort.Strings(names)

	pattern := regexp.MustCompile(`\{(` + strings.Join(names, "|") + `)\}`)
	return pattern.ReplaceAllStringFunc(tpl.CodeBody, func(match string) string {
		name := match[1 : len(match)-1]
		return values[name]
	})
}

// RenderPythonValue renders a Go value as a Python literal. Strings are
// quoted and escaped; slices and maps become list and dict literals; nil
// becomes None.
func RenderPythonValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return pythonQuote(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []any:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = RenderPythonValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = pythonQuote(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = pythonQuote(k) + ": " + RenderPythonValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// pythonQuote produces a single-quoted Python string literal with
// backslash, quote, and control characters escaped.
func pythonQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
