// Package http serves the werkbank turn API over HTTP.
package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/engine"
	"github.com/jkoenig/werkbank/pkg/storage"
	"github.com/jkoenig/werkbank/pkg/transport"
)

// Adapter serves the turn API over HTTP. It routes requests to the
// turn runner and the optional store and serializes results.
type Adapter struct {
	runner transport.TurnRunner
	store  storage.TurnStore // nil if stateless-only
	mux    *http.ServeMux
	config Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
	}
}

// TurnResponse is the wire form of a completed turn. Image payloads are
// carried as a separate base64 array, never embedded in the message text.
type TurnResponse struct {
	TurnID       string     `json:"turn_id"`
	SessionID    string     `json:"session_id"`
	Message      string     `json:"message"`
	Succeeded    bool       `json:"succeeded"`
	Duplicate    bool       `json:"duplicate,omitempty"`
	TaskCategory string     `json:"task_category,omitempty"`
	Origin       api.Origin `json:"origin,omitempty"`
	TemplateName string     `json:"template_name,omitempty"`
	Code         string     `json:"code,omitempty"`
	Output       string     `json:"output,omitempty"`
	Error        string     `json:"error,omitempty"`
	Images       []string   `json:"images,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewAdapter creates an HTTP adapter with the given TurnRunner and options.
// The TurnStore is optional; when nil, stored-turn endpoints return an
// error indicating the operation is not available.
// Middleware is applied to the TurnRunner in the given order.
func NewAdapter(runner transport.TurnRunner, store storage.TurnStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		runner = transport.Chain(middlewares...)(runner)
	}

	a := &Adapter{
		runner: runner,
		store:  store,
		mux:    http.NewServeMux(),
		config: cfg,
	}

	a.mux.HandleFunc("POST /v1/turns", a.handleRunTurn)
	a.mux.HandleFunc("GET /v1/turns/{id}", a.handleGetTurn)
	a.mux.HandleFunc("GET /v1/turns", a.handleListTurns)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleRunTurn handles POST /v1/turns.
func (a *Adapter) handleRunTurn(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w, &transport.ErrorDetail{
			Kind:    api.ErrorKindValidation,
			Message: "Content-Type must be application/json",
		}, http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req engine.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w, &transport.ErrorDetail{
				Kind:    api.ErrorKindValidation,
				Message: fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize),
			}, http.StatusRequestEntityTooLarge)
			return
		}
		transport.WriteErrorResponse(w, &transport.ErrorDetail{
			Kind:    api.ErrorKindValidation,
			Message: "invalid JSON: " + err.Error(),
		}, http.StatusBadRequest)
		return
	}

	res, err := a.runner.RunTurn(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(turnResponseFrom(res))
}

// turnResponseFrom converts an engine result to its wire form.
func turnResponseFrom(res *engine.TurnResult) *TurnResponse {
	out := &TurnResponse{
		TurnID:    res.TurnID,
		SessionID: res.SessionID,
		Message:   res.Message,
		Duplicate: res.Duplicate,
		CreatedAt: res.CreatedAt,
	}
	if res.Intent != nil {
		out.TaskCategory = res.Intent.TaskCategory
	}
	if res.Code != nil {
		out.Origin = res.Code.Origin
		out.TemplateName = res.Code.TemplateName
		out.Code = res.Code.Code
	}
	if res.Result != nil {
		out.Succeeded = res.Result.Succeeded
		out.Output = res.Result.Output
		out.Error = res.Result.Error
		for _, img := range res.Result.Images {
			out.Images = append(out.Images, base64.StdEncoding.EncodeToString(img))
		}
	}
	return out
}

// handleGetTurn handles GET /v1/turns/{id}.
func (a *Adapter) handleGetTurn(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w, &transport.ErrorDetail{
			Kind:    api.ErrorKindValidation,
			Message: "turn retrieval is not available (no store configured)",
		}, http.StatusNotImplemented)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateTurnID(id) {
		transport.WriteErrorResponse(w, &transport.ErrorDetail{
			Kind:    api.ErrorKindValidation,
			Message: "malformed turn ID",
		}, http.StatusBadRequest)
		return
	}

	rec, err := a.store.GetTurn(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteError(w, api.NewNotFoundError("turn "+id+" not found"))
		} else {
			transport.WriteError(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// handleListTurns handles GET /v1/turns.
func (a *Adapter) handleListTurns(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w, &transport.ErrorDetail{
			Kind:    api.ErrorKindValidation,
			Message: "turn listing is not available (no store configured)",
		}, http.StatusNotImplemented)
		return
	}

	opts, detail := parseListOptions(r)
	if detail != nil {
		transport.WriteErrorResponse(w, detail, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListTurns(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleHealthz handles GET /healthz. The store health check is included
// when a store is configured.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			status = "degraded: " + err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// parseListOptions extracts filter and pagination parameters from the
// query string.
func parseListOptions(r *http.Request) (storage.ListOptions, *transport.ErrorDetail) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		SessionID: q.Get("session"),
		After:     q.Get("after"),
		Order:     q.Get("order"),
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, &transport.ErrorDetail{
			Kind:    api.ErrorKindValidation,
			Message: "order must be 'asc' or 'desc'",
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, &transport.ErrorDetail{
				Kind:    api.ErrorKindValidation,
				Message: "limit must be a positive integer",
			}
		}
		opts.Limit = limit
	}

	return opts, nil
}
