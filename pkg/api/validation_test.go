package api

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidateTurnInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"normal text", "draw a sine curve", false},
		{"chinese text", "帮我画个正弦曲线", false},
		{"empty", "", true},
		{"whitespace only", "   \n\t  ", true},
		{"at limit", strings.Repeat("a", MaxInputLength), false},
		{"over limit", strings.Repeat("a", MaxInputLength+1), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurnInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTurnInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Kind != ErrorKindValidation {
				t.Errorf("error kind = %q, want validation", err.Kind)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"alphanumeric", "session42", false},
		{"with separators", "chat-1:user_2.a", false},
		{"spaces rejected", "a b", true},
		{"too long", strings.Repeat("a", MaxSessionIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		max    int
		marker string
		want   string
	}{
		{"under limit unchanged", "hello", 10, "...", "hello"},
		{"exactly at limit unchanged", "hello", 5, "...", "hello"},
		{"truncated with marker", "hello world", 5, "...", "hello..."},
		{"zero max unchanged", "hello", 0, "...", "hello"},
		{"multibyte not split", "日本語テキスト", 3, "…", "日本語…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.s, tt.max, tt.marker)
			if got != tt.want {
				t.Errorf("TruncateRunes() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

// Truncation keeps an exact prefix: for any over-limit input the result is
// the first max runes plus the marker.
func TestTruncateRunes_ExactPrefix(t *testing.T) {
	s := strings.Repeat("x", 100) + strings.Repeat("y", 100)
	got := TruncateRunes(s, 150, "[cut]")

	wantLen := 150 + len("[cut]")
	if len(got) != wantLen {
		t.Errorf("length = %d, want %d", len(got), wantLen)
	}
	if !strings.HasPrefix(s, strings.TrimSuffix(got, "[cut]")) {
		t.Error("kept prefix does not match original prefix")
	}
}
