package shape

import "strings"

// hintRule maps an error-kind substring to its remediation hints. Rules
// are checked in order; the first match wins.
type hintRule struct {
	substrings []string
	hints      []string
}

var hintRules = []hintRule{
	{
		[]string{"ModuleNotFoundError", "No module named"},
		[]string{
			"Module not found: check that the module name is correct",
			"The module may not be installed or available in the sandbox",
			"Try an alternative library that is available",
		},
	},
	{
		[]string{"SyntaxError"},
		[]string{
			"Syntax error: check indentation and syntax",
			"Make sure brackets and quotes are balanced",
			"Look for typos in keywords",
		},
	},
	{
		[]string{"NameError"},
		[]string{
			"A variable or function is not defined",
			"Check that the name is spelled correctly",
			"Make sure values are defined before use",
		},
	},
	{
		[]string{"TypeError"},
		[]string{
			"Type error: check that data types match",
			"Make sure function arguments have the right types",
			"Check for operations on unsupported types",
		},
	},
	{
		[]string{"ValueError"},
		[]string{
			"Value error: check that input data is valid",
			"Make sure the data format matches expectations",
			"Check that numeric values are in a sensible range",
		},
	},
	{
		[]string{"IndexError"},
		[]string{
			"Index error: check list or array bounds",
			"Make sure indexes stay within the data length",
			"Check whether the data is empty",
		},
	},
	{
		[]string{"KeyError"},
		[]string{
			"Key error: check that the dictionary key exists",
			"Use .get() to avoid KeyError",
			"Verify the data structure is what you expect",
		},
	},
	{
		[]string{"FileNotFoundError"},
		[]string{
			"File not found: check that the path is correct",
			"Make sure the file was uploaded to the sandbox",
			"Check the file name for typos",
		},
	},
	{
		[]string{"timed out", "TimeoutError"},
		[]string{
			"The execution hit its time limit",
			"Reduce the amount of work or data processed",
			"Avoid waiting on slow external services",
		},
	},
}

// genericHints apply when no rule matches.
var genericHints = []string{
	"Check the code logic",
	"Make sure the data format matches expectations",
	"Try simplifying the code",
}

// AnalyzeError returns remediation hints for an error message. The first
// matching rule wins; unrecognized errors get the generic hints.
func AnalyzeError(errMsg string) []string {
	for _, rule := range hintRules {
		for _, sub := range rule.substrings {
			if strings.Contains(errMsg, sub) {
				return rule.hints
			}
		}
	}
	return genericHints
}
