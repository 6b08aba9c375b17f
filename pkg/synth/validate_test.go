package synth

import (
	"strings"
	"testing"

	"github.com/jkoenig/werkbank/pkg/catalog"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"python fence",
			"Here you go:\n```python\nprint('hi')\n```\nEnjoy!",
			"print('hi')",
		},
		{
			"bare fence",
			"```\nprint('hi')\n```",
			"print('hi')",
		},
		{
			"no fence returns whole response",
			"print('hi')",
			"print('hi')",
		},
		{
			"python fence wins over bare",
			"```\nnot this\n```\n```python\nprint('hi')\n```",
			"print('hi')",
		},
		{
			"unterminated fence falls through",
			"```python\nprint('hi')",
			"```python\nprint('hi')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCode(tt.input)
			if got != tt.want {
				t.Errorf("ExtractCode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid script", "import math\nprint(math.pi)", false},
		{"too short", "print()", true},
		{"no keyword", "hello world, nothing here at all", true},
		{"unbalanced paren", "import math\nprint(math.pi", true},
		{"mismatched bracket", "import x\nvalues = [1, 2)", true},
		{"paren inside string ok", "import x\nprint('(unclosed in string')", false},
		{"paren inside comment ok", "import x\nprint(1)  # (comment", false},
		{
			"paren inside docstring ok",
			"def f():\n    \"\"\"does (things\"\"\"\n    return 1",
			false,
		},
		{"await counts as keyword", "await do_work(x)", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCode_FilledBuiltinTemplatesPass(t *testing.T) {
	// Every builtin template must survive validation after substitution
	// with its first example's parameters.
	c := catalog.New()
	for _, name := range c.Names() {
		t.Run(name, func(t *testing.T) {
			tpl := c.Get(name)
			params := map[string]any{}
			if len(tpl.Examples) > 0 && tpl.Examples[0].Parameters != nil {
				params = tpl.Examples[0].Parameters
			}
			code := FillTemplate(tpl, params)
			if strings.Contains(code, "{url}") {
				t.Error("placeholder left unfilled")
			}
			if err := ValidateCode(code); err != nil {
				t.Errorf("ValidateCode() = %v", err)
			}
		})
	}
}
