// Command sandbox-server runs the execution service werkbank dispatches
// Python code to. It is deployed inside agent-sandbox pods (or run
// standalone for development) and executes each script in an isolated
// subprocess with a fresh working directory.
//
// Configuration:
//
//	WERKBANK_SANDBOX_PORT           - Listen port (default: 8080)
//	WERKBANK_SANDBOX_API_KEY        - Required bearer token (default: none)
//	WERKBANK_SANDBOX_MAX_CONCURRENT - Max concurrent executions (default: 3)
//	WERKBANK_SANDBOX_PYTHON_INDEX   - Package index URL (default: https://pypi.org/simple/)
//	WERKBANK_SANDBOX_OUTPUT_DIR     - Output directory name within temp dir (default: output)
package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	port := envOr("WERKBANK_SANDBOX_PORT", "8080")
	apiKey := os.Getenv("WERKBANK_SANDBOX_API_KEY")
	maxConcurrent := envOrInt("WERKBANK_SANDBOX_MAX_CONCURRENT", 3)
	pythonIndex := envOr("WERKBANK_SANDBOX_PYTHON_INDEX", "https://pypi.org/simple/")
	outputDirName := envOr("WERKBANK_SANDBOX_OUTPUT_DIR", "output")

	if _, err := exec.LookPath("python3"); err != nil {
		slog.Error("python3 not found in PATH")
		os.Exit(1)
	}

	srv := &execServer{
		apiKey:        apiKey,
		pythonVersion: pythonVersion(),
		maxConcurrent: int32(maxConcurrent),
		pythonIndex:   pythonIndex,
		outputDirName: outputDirName,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", srv.withAuth(srv.handleExecute))
	mux.HandleFunc("GET /health", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Long timeout for code execution.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("sandbox server starting", "port", port, "python", srv.pythonVersion, "max_concurrent", maxConcurrent)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

type execServer struct {
	apiKey        string
	pythonVersion string
	maxConcurrent int32
	currentLoad   atomic.Int32
	pythonIndex   string
	outputDirName string
	startTime     time.Time
}

// withAuth enforces the bearer token when one is configured.
func (s *execServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next(w, r)
	}
}

type executeRequest struct {
	Code           string            `json:"code"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Requirements   []string          `json:"requirements,omitempty"`
	Files          map[string]string `json:"files,omitempty"`
}

type executeResponse struct {
	Status          string            `json:"status"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	ExitCode        int               `json:"exit_code"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	FilesProduced   map[string]string `json:"files_produced,omitempty"`
}

func (s *execServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.currentLoad.Add(1)
	defer s.currentLoad.Add(-1)

	if current > s.maxConcurrent {
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.maxConcurrent))
		return
	}

	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10*1024*1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.TimeoutSeconds <= 0 {
		req.TimeoutSeconds = 30
	}

	slog.Info("execute request",
		"code", preview(req.Code, 120),
		"timeout", req.TimeoutSeconds,
		"requirements", len(req.Requirements),
		"files", len(req.Files),
	)

	tmpDir, err := os.MkdirTemp("", "werkbank-exec-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create temp dir: "+err.Error())
		return
	}
	defer os.RemoveAll(tmpDir)

	outputDir := filepath.Join(tmpDir, s.outputDirName)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create output dir: "+err.Error())
		return
	}

	// Write input files next to the script.
	for name, b64Content := range req.Files {
		content, err := base64.StdEncoding.DecodeString(b64Content)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode file %q: %v", name, err))
			return
		}
		filePath := filepath.Join(tmpDir, filepath.Base(name)) // Prevent path traversal.
		if err := os.WriteFile(filePath, content, 0644); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write file %q: %v", name, err))
			return
		}
	}

	pyLibs := filepath.Join(tmpDir, ".pylibs")
	if len(req.Requirements) > 0 {
		if err := s.installRequirements(r.Context(), tmpDir, pyLibs, req.Requirements, req.TimeoutSeconds); err != nil {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(executeResponse{
				Status:   "error",
				Stderr:   "package installation failed: " + err.Error(),
				ExitCode: -1,
			})
			return
		}
	}

	scriptPath := filepath.Join(tmpDir, "script.py")
	if err := os.WriteFile(scriptPath, []byte(req.Code), 0644); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write code: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.TimeoutSeconds)*time.Second)
	defer cancel()

	startTime := time.Now()
	cmd := exec.CommandContext(ctx, "python3", scriptPath)
	cmd.Dir = tmpDir
	cmd.Env = append(os.Environ(),
		"OUTPUT_DIR="+outputDir,
		"PYTHONPATH="+pyLibs,
	)

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	execErr := cmd.Run()
	duration := time.Since(startTime)

	exitCode := 0
	status := "success"
	if execErr != nil {
		status = "error"
		// Context deadline takes precedence over the exit error.
		if ctx.Err() == context.DeadlineExceeded {
			exitCode = -1
			if stderrBuf.Len() == 0 {
				stderrBuf.WriteString(fmt.Sprintf("execution timed out after %d seconds", req.TimeoutSeconds))
			}
		} else if exitErr, ok := execErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	filesProduced := collectOutputFiles(outputDir)

	slog.Info("execute complete",
		"status", status,
		"exit_code", exitCode,
		"duration_ms", duration.Milliseconds(),
		"stdout_len", stdoutBuf.Len(),
		"stdout", preview(stdoutBuf.String(), 200),
		"files_produced", len(filesProduced),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(executeResponse{
		Status:          status,
		Stdout:          stdoutBuf.String(),
		Stderr:          stderrBuf.String(),
		ExitCode:        exitCode,
		ExecutionTimeMs: duration.Milliseconds(),
		FilesProduced:   filesProduced,
	})
}

// installRequirements installs packages into a per-execution target
// directory with uv so parallel executions cannot interfere.
func (s *execServer) installRequirements(ctx context.Context, workDir, targetDir string, requirements []string, timeoutSecs int) error {
	installCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	args := []string{"pip", "install", "--system", "--target", targetDir, "--index-url", s.pythonIndex}
	args = append(args, requirements...)

	cmd := exec.CommandContext(installCtx, "uv", args...)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err.Error(), string(output))
	}
	return nil
}

// collectOutputFiles reads files from the output directory and encodes
// them as base64.
func collectOutputFiles(outputDir string) map[string]string {
	entries, err := os.ReadDir(outputDir)
	if err != nil || len(entries) == 0 {
		return nil
	}

	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outputDir, entry.Name()))
		if err != nil {
			continue
		}
		files[entry.Name()] = base64.StdEncoding.EncodeToString(content)
	}

	if len(files) == 0 {
		return nil
	}
	return files
}

type healthResponse struct {
	Status        string `json:"status"`
	PythonVersion string `json:"python_version"`
	Capacity      int    `json:"capacity"`
	CurrentLoad   int    `json:"current_load"`
	UptimeSecs    int64  `json:"uptime_seconds"`
}

func (s *execServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:        "healthy",
		PythonVersion: s.pythonVersion,
		Capacity:      int(s.maxConcurrent),
		CurrentLoad:   int(s.currentLoad.Load()),
		UptimeSecs:    int64(time.Since(s.startTime).Seconds()),
	})
}

func pythonVersion() string {
	output, err := exec.Command("python3", "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return defaultVal
	}
	return n
}
