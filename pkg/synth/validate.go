package synth

import (
	"fmt"
	"strings"
)

// ExtractCode strips the code out of a completion response. A ```python
// fence wins, then any ``` fence, then the whole response verbatim.
func ExtractCode(response string) string {
	if idx := strings.Index(response, "```python"); idx >= 0 {
		rest := response[idx+len("```python"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(response, "```"); idx >= 0 {
		rest := response[idx+3:]
		// Skip a language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && nl < 20 && !strings.Contains(rest[:nl], " ") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return strings.TrimSpace(response)
}

// pythonKeywords is the marker set a plausible script must mention.
var pythonKeywords = []string{
	"import", "def", "class", "if", "for", "while", "try", "print", "await",
}

// ValidateCode performs a plausibility check on generated code: minimum
// length, presence of at least one Python keyword, and balanced brackets
// outside of string literals and comments. It is not a full parse; the
// sandbox interpreter is the final arbiter.
func ValidateCode(code string) error {
	if len(code) < 10 {
		return fmt.Errorf("code too short (%d bytes)", len(code))
	}

	hasKeyword := false
	for _, kw := range pythonKeywords {
		if strings.Contains(code, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return fmt.Errorf("no Python keyword found")
	}

	if err := checkBalanced(code); err != nil {
		return err
	}
	return nil
}

// checkBalanced verifies that (), [], {} pair up outside of Python string
// literals and # comments. Triple-quoted strings are handled so that
// docstring prose does not disturb the count.
func checkBalanced(code string) error {
	var stack []byte
	i := 0
	n := len(code)

	for i < n {
		c := code[i]

		// Comments run to end of line.
		if c == '#' {
			for i < n && code[i] != '\n' {
				i++
			}
			continue
		}

		// String literals. Triple quotes first.
		if c == '\'' || c == '"' {
			if i+2 < n && code[i+1] == c && code[i+2] == c {
				closer := strings.Repeat(string(c), 3)
				end := strings.Index(code[i+3:], closer)
				if end < 0 {
					return fmt.Errorf("unterminated triple-quoted string")
				}
				i += 3 + end + 3
				continue
			}
			quote := c
			i++
			for i < n {
				if code[i] == '\\' {
					i += 2
					continue
				}
				if code[i] == quote || code[i] == '\n' {
					break
				}
				i++
			}
			i++
			continue
		}

		switch c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 {
				return fmt.Errorf("unbalanced %q", c)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (c == ')' && open != '(') || (c == ']' && open != '[') || (c == '}' && open != '{') {
				return fmt.Errorf("mismatched %q", c)
			}
		}
		i++
	}

	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}
