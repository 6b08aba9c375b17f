// Command mock-backend runs a deterministic Chat Completions server for
// pipeline testing without a real LLM. It inspects the incoming prompt
// and answers the three werkbank stages (classification, generation,
// summary) with predictable content.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	prompt := lastUserMessage(&req)
	text := respondToStage(prompt)

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMsg{Role: "assistant", Content: text},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 50, CompletionTokens: 30, TotalTokens: 80},
	})
}

// respondToStage matches the prompt against the three pipeline stages
// and returns stage-appropriate deterministic content.
func respondToStage(prompt string) string {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(prompt, "intent classification expert"):
		return classificationFor(lower)
	case strings.Contains(prompt, "Python code generation expert"):
		return generationFor(lower)
	case strings.Contains(prompt, "analyzing code execution results"):
		return "The code ran successfully and produced the expected output."
	default:
		return "Hello, nice day!"
	}
}

func classificationFor(lower string) string {
	switch {
	case strings.Contains(lower, "sine"):
		return `{"task_category":"plot","sub_category":"sine_wave","parameters":{"color":"blue"},"confidence":0.95,"needs_prior_context":false,"context_references":[]}`
	case strings.Contains(lower, "plot") || strings.Contains(lower, "chart"):
		return `{"task_category":"plot","sub_category":"line_chart","parameters":{},"confidence":0.9,"needs_prior_context":false,"context_references":[]}`
	case strings.Contains(lower, "scrape") || strings.Contains(lower, "screenshot") || strings.Contains(lower, "http"):
		return `{"task_category":"web","sub_category":"scrape","parameters":{},"confidence":0.85,"needs_prior_context":false,"context_references":[]}`
	case strings.Contains(lower, "average") || strings.Contains(lower, "statistic") || strings.Contains(lower, "sort"):
		return `{"task_category":"data_analysis","sub_category":"statistics","parameters":{},"confidence":0.85,"needs_prior_context":false,"context_references":[]}`
	case strings.Contains(lower, "fibonacci") || strings.Contains(lower, "equation") || strings.Contains(lower, "calculate"):
		return `{"task_category":"math","sub_category":"computation","parameters":{},"confidence":0.85,"needs_prior_context":false,"context_references":[]}`
	default:
		return `{"task_category":"other","sub_category":"","parameters":{},"confidence":0.4,"needs_prior_context":false,"context_references":[]}`
	}
}

func generationFor(lower string) string {
	if strings.Contains(lower, "sine") || strings.Contains(lower, "plot") || strings.Contains(lower, "chart") {
		return "```python\n" +
			"import numpy as np\n" +
			"import matplotlib\n" +
			"matplotlib.use('Agg')\n" +
			"import matplotlib.pyplot as plt\n" +
			"\n" +
			"x = np.linspace(-10, 10, 500)\n" +
			"plt.plot(x, np.sin(x))\n" +
			"plt.title('Sine wave')\n" +
			"plt.savefig('plot.png')\n" +
			"print('chart saved')\n" +
			"```"
	}
	return "```python\n" +
		"result = sum(range(1, 11))\n" +
		"print(f'result: {result}')\n" +
		"```"
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "werkbank-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}
