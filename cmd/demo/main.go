// Command demo runs the synthesis pipeline offline: a scripted
// completion backend plays the classifier, the template catalog
// produces code, and the rendered message is printed. No sandbox or
// network is needed.
package main

import (
	"context"
	"fmt"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/catalog"
	"github.com/jkoenig/werkbank/pkg/completion"
	"github.com/jkoenig/werkbank/pkg/intent"
	"github.com/jkoenig/werkbank/pkg/shape"
	"github.com/jkoenig/werkbank/pkg/synth"
)

func main() {
	fmt.Println("=== werkbank pipeline demo ===")
	fmt.Println()

	ctx := context.Background()
	request := "plot a sine wave from -10 to 10 in blue"

	// 1. Classify with a scripted backend.
	mock := completion.NewMock(
		`{"task_category":"plot","sub_category":"sine_wave","parameters":{"x_range":[-10,10],"color":"blue"},"confidence":0.95}`,
	)
	classifier := intent.NewClassifier(mock, intent.Options{Model: "demo-model"})
	classified := classifier.Classify(ctx, request, nil)
	fmt.Printf("[1] Intent: %s/%s (confidence %.2f)\n",
		classified.TaskCategory, classified.SubCategory, classified.Confidence)

	// 2. Synthesize from the template catalog. The LLM tiers are
	// disabled, so raw template substitution must succeed.
	s := synth.New(catalog.New(), synth.Options{LLMEnabled: false})
	code, err := s.Generate(ctx, classified, nil)
	if err != nil {
		fmt.Printf("synthesis failed: %v\n", err)
		return
	}
	fmt.Printf("\n[2] Code (origin %s, template %s):\n%s\n", code.Origin, code.TemplateName, code.Code)

	// 3. Shape a simulated execution result.
	result := &api.ExecutionResult{
		Succeeded: true,
		Output:    "chart saved",
		Images:    [][]byte{{0x89, 0x50, 0x4e, 0x47}},
	}
	shaper := shape.New(shape.Options{MaxMessageLength: 1000})
	fmt.Printf("\n[3] Rendered message:\n%s\n", shaper.Render(ctx, request, code.Code, result))
}
