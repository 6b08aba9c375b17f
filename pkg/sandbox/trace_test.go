package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		trace     RawTrace
		succeeded bool
		output    string
		errSubstr string
		images    int
	}{
		{
			name:      "clean run",
			trace:     RawTrace{Stdout: Text("hello\n")},
			succeeded: true, output: "hello",
		},
		{
			name:      "structured error",
			trace:     RawTrace{ErrorName: "NameError", ErrorValue: "name 'x' is not defined", Traceback: "Traceback..."},
			errSubstr: "NameError: name 'x' is not defined",
		},
		{
			name:      "stderr on clean exit",
			trace:     RawTrace{Stdout: Text("partial"), Stderr: Text("something broke")},
			output:    "partial",
			errSubstr: "something broke",
		},
		{
			name:      "curl progress filtered",
			trace:     RawTrace{Stdout: Text("done"), Stderr: Text("  % Total    % Received % Xferd  Average Speed")},
			succeeded: true, output: "done",
		},
		{
			name:      "kernel warning filtered",
			trace:     RawTrace{Stdout: Text("done"), Stderr: Text("DeprecationWarning: this API is old")},
			succeeded: true, output: "done",
		},
		{
			name:      "noise kept on nonzero exit",
			trace:     RawTrace{Stderr: Text("DeprecationWarning: also a real crash here"), ExitCode: 1},
			errSubstr: "DeprecationWarning",
		},
		{
			name:      "silent nonzero exit",
			trace:     RawTrace{Stdout: Text("x"), ExitCode: 2},
			output:    "x",
			errSubstr: "nonzero status",
		},
		{
			name: "stdout as lines",
			trace: RawTrace{
				Stdout: TextBlock{Lines: []string{"line one", "line two"}},
			},
			succeeded: true, output: "line one\nline two",
		},
		{
			name: "stderr lines on clean exit",
			trace: RawTrace{
				Stderr: TextBlock{Lines: []string{"boom", "details"}},
			},
			errSubstr: "boom\ndetails",
		},
		{
			name: "images preserved on success",
			trace: RawTrace{
				Stdout:  Text("plotted"),
				Results: []TraceResult{{PNGBytes: []byte{0x89, 0x50}}},
			},
			succeeded: true, output: "plotted", images: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(&tt.trace, 5000)

			if result.Succeeded != tt.succeeded {
				t.Errorf("succeeded = %v, want %v", result.Succeeded, tt.succeeded)
			}
			if result.Output != tt.output {
				t.Errorf("output = %q, want %q", result.Output, tt.output)
			}
			if tt.errSubstr == "" {
				if result.Error != "" {
					t.Errorf("error = %q, want empty", result.Error)
				}
			} else if !strings.Contains(result.Error, tt.errSubstr) {
				t.Errorf("error = %q, want substring %q", result.Error, tt.errSubstr)
			}
			// The invariant the rest of the pipeline relies on.
			if result.Succeeded != (result.Error == "") {
				t.Error("succeeded does not match empty-error invariant")
			}
			if len(result.Images) != tt.images {
				t.Errorf("images = %d, want %d", len(result.Images), tt.images)
			}
		})
	}
}

func TestNormalize_ResultShapes(t *testing.T) {
	// Each entry carries its payload under a different encoding; all three
	// must decode to the same bytes, and undecodable entries are dropped
	// rather than failing the run.
	png := []byte{0x89, 0x50, 0x4e, 0x47}
	b64 := base64.StdEncoding.EncodeToString(png)

	trace := &RawTrace{
		Stdout: Text("plotted"),
		Results: []TraceResult{
			{PNGBytes: png},
			{PNGBase64: b64},
			{Formats: map[string]string{"image/png": b64}},
			{PNGBase64: "not valid base64!!"},
			{Formats: map[string]string{"text/html": "<p>ignored</p>"}},
			{},
		},
	}

	result := Normalize(trace, 5000)
	if !result.Succeeded {
		t.Fatalf("succeeded = false, error = %q", result.Error)
	}
	if len(result.Images) != 3 {
		t.Fatalf("images = %d, want 3", len(result.Images))
	}
	for i, img := range result.Images {
		if string(img) != string(png) {
			t.Errorf("image %d mangled: %v", i, img)
		}
	}
}

func TestTextBlock_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		err  bool
	}{
		{name: "single string", raw: `"hello\nworld"`, want: "hello\nworld"},
		{name: "list of lines", raw: `["hello","world"]`, want: "hello\nworld"},
		{name: "empty string", raw: `""`, want: ""},
		{name: "empty list", raw: `[]`, want: ""},
		{name: "number rejected", raw: `42`, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b TextBlock
			err := json.Unmarshal([]byte(tt.raw), &b)
			if tt.err {
				if err == nil {
					t.Fatal("expected unmarshal error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if b.String() != tt.want {
				t.Errorf("String() = %q, want %q", b.String(), tt.want)
			}
		})
	}
}

func TestNormalize_Truncation(t *testing.T) {
	long := strings.Repeat("日", 100)
	result := Normalize(&RawTrace{Stdout: Text(long)}, 50)

	if !strings.HasSuffix(result.Output, truncationMarker) {
		t.Errorf("output missing truncation marker: %q", result.Output)
	}
	// Rune-safe: no broken UTF-8 at the cut.
	body := strings.TrimSuffix(result.Output, truncationMarker)
	for _, r := range body {
		if r != '日' {
			t.Fatalf("broken rune %q in truncated output", r)
		}
	}
}

func TestDetectRequirements(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			"numpy and matplotlib",
			"import numpy as np\nimport matplotlib.pyplot as plt",
			[]string{"matplotlib", "numpy"},
		},
		{
			"from import",
			"from bs4 import BeautifulSoup\nfrom PIL import Image",
			[]string{"beautifulsoup4", "pillow"},
		},
		{
			"stdlib only",
			"import os\nimport sys\nimport json",
			nil,
		},
		{
			"deduplicated",
			"import requests\nimport requests",
			[]string{"requests"},
		},
		{
			"indented import inside try",
			"try:\n    import playwright\nexcept ImportError:\n    pass",
			[]string{"playwright"},
		},
		{
			"mention in string does not count",
			"print('you should import numpy')",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectRequirements(tt.code)
			if len(got) != len(tt.want) {
				t.Fatalf("DetectRequirements() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("DetectRequirements() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
