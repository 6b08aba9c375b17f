package sandbox

import (
	"strings"

	"github.com/jkoenig/werkbank/pkg/api"
)

// truncationMarker is appended when captured output exceeds the limit.
const truncationMarker = "\n...(output truncated)"

// curlProgressKeywords identify curl download-progress tables on stderr.
var curlProgressKeywords = []string{
	"% Total", "% Received", "Dload", "Upload", "Speed", "Xferd",
}

// kernelNoiseKeywords identify interpreter chatter and warnings that are
// not execution errors.
var kernelNoiseKeywords = []string{
	"IPython", "ipykernel", "jupyter", "DeprecationWarning", "FutureWarning",
}

// isCurlProgress reports whether stderr text is a curl progress table.
func isCurlProgress(stderr string) bool {
	return containsAnyKeyword(stderr, curlProgressKeywords)
}

// isKernelNoise reports whether stderr text is interpreter warning noise.
func isKernelNoise(stderr string) bool {
	return containsAnyKeyword(stderr, kernelNoiseKeywords)
}

func containsAnyKeyword(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Normalize converts a raw trace into the canonical execution result.
//
// Error assembly order: the structured interpreter error first, then
// stderr unless it is recognized noise. A nonzero exit code always keeps
// stderr, noise or not, because in that case stderr is the actual
// failure text. Image payloads are decoded from whichever encoding each
// result entry carries; entries that decode to nothing are dropped.
// Output is capped at maxOutput runes.
func Normalize(trace *RawTrace, maxOutput int) *api.ExecutionResult {
	var errorParts []string

	if trace.ErrorName != "" {
		msg := trace.ErrorName + ": " + trace.ErrorValue
		if trace.Traceback != "" {
			msg += "\n" + trace.Traceback
		}
		errorParts = append(errorParts, msg)
	}

	stderr := strings.TrimSpace(trace.Stderr.String())
	if stderr != "" {
		keep := trace.ExitCode != 0 || (!isCurlProgress(stderr) && !isKernelNoise(stderr))
		if keep {
			errorParts = append(errorParts, stderr)
		}
	}

	// A nonzero exit with silent stderr still fails.
	if len(errorParts) == 0 && trace.ExitCode != 0 {
		errorParts = append(errorParts, "process exited with nonzero status")
	}

	output := strings.TrimSpace(trace.Stdout.String())
	if maxOutput > 0 {
		output = api.TruncateRunes(output, maxOutput, truncationMarker)
	}

	var images [][]byte
	for i := range trace.Results {
		if data := trace.Results[i].payload(); data != nil {
			images = append(images, data)
		}
	}

	errText := strings.Join(errorParts, "\n")
	return &api.ExecutionResult{
		Succeeded: errText == "",
		Output:    output,
		Error:     errText,
		Images:    images,
	}
}
