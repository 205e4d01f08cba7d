package spotlight

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

// ─── Standalone transforms ────────────────────────────────────────────────────

func TestDelimit_Defaults(t *testing.T) {
	sp, err := New(MethodDelimit)
	if err != nil {
		t.Fatalf("New(delimit): %v", err)
	}
	if got := sp.Process("hello world"); got != "«hello world»" {
		t.Errorf("delimit = %q, want «hello world»", got)
	}
	if got := sp.Process(""); got != "«»" {
		t.Errorf("delimit of empty = %q, want «»", got)
	}
}

func TestDelimit_CustomDelimiters(t *testing.T) {
	sp, err := New(MethodDelimit, WithDelimiters("[[", "]]"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := sp.Process("This is a test."); got != "[[This is a test.]]" {
		t.Errorf("delimit = %q", got)
	}
}

func TestDatamark_CustomMarker(t *testing.T) {
	if got := Datamark("one two   three", "^"); got != "one^two^three" {
		t.Errorf("datamark = %q, want one^two^three", got)
	}
	if got := Datamark("  leading and trailing spaces  ", "_"); got != "leading_and_trailing_spaces" {
		t.Errorf("datamark = %q", got)
	}
	if got := Datamark("", "_"); got != "" {
		t.Errorf("datamark of empty = %q, want empty", got)
	}
}

func TestDatamark_DefaultMarkerInPrivateUseArea(t *testing.T) {
	sp, err := New(MethodDatamark)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := sp.Process("a b")
	runes := []rune(out)
	if len(runes) != 3 {
		t.Fatalf("datamark output = %q, want a single-rune marker between words", out)
	}
	if runes[1] < 0xE000 || runes[1] > 0xF8FF {
		t.Errorf("default marker %U outside the private use area", runes[1])
	}
}

func TestEncodeBase64_Roundtrip(t *testing.T) {
	encoded := EncodeBase64("radar")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if string(decoded) != "radar" {
		t.Errorf("roundtrip = %q, want radar", decoded)
	}
	if got := EncodeBase64("test"); got != "dGVzdA==" {
		t.Errorf("base64 = %q, want dGVzdA==", got)
	}
}

func TestEncodeHex_Roundtrip(t *testing.T) {
	encoded := EncodeHex("radar")
	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if string(decoded) != "radar" {
		t.Errorf("roundtrip = %q, want radar", decoded)
	}
}

func TestEncodeLayered(t *testing.T) {
	// base64("hello") = "aGVsbG8=", hex of that = "614756736247383d"
	if got := EncodeLayered("hello"); got != "614756736247383d" {
		t.Errorf("layered = %q, want 614756736247383d", got)
	}
	if got := EncodeLayered(""); got != "" {
		t.Errorf("layered of empty = %q, want empty", got)
	}
}

func TestROT13(t *testing.T) {
	if got := ROT13("Hello World"); got != "Uryyb Jbeyq" {
		t.Errorf("rot13 = %q, want Uryyb Jbeyq", got)
	}
	if got := ROT13(ROT13("Hello, World!")); got != "Hello, World!" {
		t.Errorf("rot13 is not its own inverse: %q", got)
	}
}

func TestBinary(t *testing.T) {
	if got := Binary("test"); got != "01110100 01100101 01110011 01110100" {
		t.Errorf("binary = %q", got)
	}
	if got := Binary("A"); got != "01000001" {
		t.Errorf("binary = %q, want 01000001", got)
	}
	if got := Binary(""); got != "" {
		t.Errorf("binary of empty = %q, want empty", got)
	}
}

// ─── Spotlighter dispatcher ───────────────────────────────────────────────────

func TestSpotlighter_MatchesDirectFunctions(t *testing.T) {
	const s = "test content"
	tests := []struct {
		method string
		opts   []Option
		want   string
	}{
		{MethodDelimit, nil, Delimit(s, DefaultStart, DefaultEnd)},
		{MethodDatamark, []Option{WithMarker("*")}, Datamark(s, "*")},
		{MethodBase64, nil, EncodeBase64(s)},
		{MethodHex, nil, EncodeHex(s)},
		{MethodROT13, nil, ROT13(s)},
		{MethodBinary, nil, Binary(s)},
		{MethodLayered, nil, EncodeLayered(s)},
	}
	for _, tc := range tests {
		sp, err := New(tc.method, tc.opts...)
		if err != nil {
			t.Fatalf("New(%s): %v", tc.method, err)
		}
		if got := sp.Process(s); got != tc.want {
			t.Errorf("Process(%s) = %q, want %q", tc.method, got, tc.want)
		}
	}
}

func TestSpotlighter_UnknownMethod(t *testing.T) {
	_, err := New("invalid_method")
	if err == nil {
		t.Fatal("New with unknown method should error")
	}
	if !strings.Contains(err.Error(), "invalid_method") {
		t.Errorf("error %q does not name the method", err)
	}
}

func TestSpotlighter_EmptyInput(t *testing.T) {
	for _, method := range []string{MethodDatamark, MethodBase64, MethodHex, MethodROT13, MethodBinary, MethodLayered} {
		sp, err := New(method)
		if err != nil {
			t.Fatalf("New(%s): %v", method, err)
		}
		if got := sp.Process(""); got != "" {
			t.Errorf("Process(%s) of empty = %q, want empty", method, got)
		}
	}
}
