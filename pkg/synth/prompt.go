package synth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jkoenig/werkbank/pkg/api"
)

// sandboxRules are the environment constraints every generation prompt
// carries. The sandbox kernel already runs inside an event loop, so
// sync Playwright or asyncio.run() would deadlock there.
const sandboxRules = `- If you use Playwright, use async_playwright (the async API), never sync_playwright
- The execution environment is already inside an event loop: use await directly, never asyncio.run()
- PNG screenshots must not pass a quality parameter (only JPEG supports it)
- Save generated images as 'plot.png'`

func buildTemplatePrompt(tpl *api.Template, intent *api.Intent, conv *api.ConversationContext) string {
	var sb strings.Builder

	sb.WriteString("You are a Python code generation expert. Generate code based on the template and the user's request.\n")

	writeRequestSection(&sb, intent)
	writeContextSection(&sb, conv)

	sb.WriteString("\n[Reference template]\n```python\n")
	sb.WriteString(tpl.CodeBody)
	sb.WriteString("\n```\n")

	sb.WriteString("\n[Requirements]\n")
	sb.WriteString("- Adapt the template to the request, do not copy it verbatim\n")
	sb.WriteString("- Fill in parameters from the request\n")
	sb.WriteString("- You may add functionality or simplify where it helps\n")
	sb.WriteString("- Keep the code readable\n")
	sb.WriteString("- Write comments and printed messages in the user's language\n")
	sb.WriteString(sandboxRules)
	sb.WriteString("\n\n[Output]\nOutput only Python code, wrapped in ```python fences.\n")

	return sb.String()
}

func buildFreeformPrompt(intent *api.Intent, conv *api.ConversationContext) string {
	var sb strings.Builder

	sb.WriteString("You are a Python code generation expert. Generate high-quality code for the user's request.\n")

	writeRequestSection(&sb, intent)
	writeContextSection(&sb, conv)

	sb.WriteString("\n[Requirements]\n")
	sb.WriteString("- The code must be complete and runnable\n")
	sb.WriteString("- Include all necessary import statements\n")
	sb.WriteString("- Include error handling (try/except)\n")
	sb.WriteString("- Print clear progress messages\n")
	sb.WriteString("- Write comments and printed messages in the user's language\n")
	sb.WriteString(sandboxRules)
	sb.WriteString("\n\n[Output]\nOutput only Python code, no prose, wrapped in ```python fences.\n")

	return sb.String()
}

func writeRequestSection(sb *strings.Builder, intent *api.Intent) {
	request := intent.UserRequest()
	if request == "" {
		request = "(not specified)"
	}
	sub := intent.SubCategory
	if sub == "" {
		sub = "(not specified)"
	}

	fmt.Fprintf(sb, "\n[User request]\n%s\n", request)
	fmt.Fprintf(sb, "\n[Classified intent]\nTask category: %s\nSub category: %s\nParameters: %s\n",
		intent.TaskCategory, sub, renderParameters(intent.Parameters))
}

func writeContextSection(sb *strings.Builder, conv *api.ConversationContext) {
	if conv == nil || conv.LastCode == "" {
		return
	}
	sb.WriteString("\n[Previously executed code]\n```python\n")
	sb.WriteString(conv.LastCode)
	sb.WriteString("\n```\n")
}

// renderParameters serializes intent parameters with stable key order so
// prompts are reproducible for identical intents.
func renderParameters(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{\n")
	for i, k := range keys {
		v, err := json.Marshal(params[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", params[k])))
		}
		fmt.Fprintf(&sb, "  %q: %s", k, v)
		if i < len(keys)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}
