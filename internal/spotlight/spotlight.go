// Package spotlight implements content-hardening transforms for untrusted
// text handed to a language model. Marking or encoding the untrusted spans
// lets the system instruction tell the model which parts of the prompt are
// data, blunting injection attempts embedded in conversation content.
package spotlight

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
)

// Supported transform methods.
const (
	MethodDelimit  = "delimit"
	MethodDatamark = "datamark"
	MethodBase64   = "base64"
	MethodHex      = "hex"
	MethodROT13    = "rot13"
	MethodBinary   = "binary"
	MethodLayered  = "layered"
)

// Default delimiters for MethodDelimit.
const (
	DefaultStart = "«"
	DefaultEnd   = "»"
)

// Delimit wraps content in start/end delimiters.
func Delimit(s, start, end string) string {
	return start + s + end
}

// Datamark replaces every whitespace run with the marker. Leading and
// trailing whitespace is stripped; empty input stays empty.
func Datamark(s, marker string) string {
	return strings.Join(strings.Fields(s), marker)
}

// EncodeBase64 encodes content as standard base64.
func EncodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// EncodeHex encodes content as lowercase hex.
func EncodeHex(s string) string {
	return hex.EncodeToString([]byte(s))
}

// EncodeLayered applies base64 then hex.
func EncodeLayered(s string) string {
	return EncodeHex(EncodeBase64(s))
}

// ROT13 rotates ASCII letters by 13; the transform is its own inverse.
func ROT13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

// Binary renders each byte as 8 bits, space-separated.
func Binary(s string) string {
	if s == "" {
		return ""
	}
	bits := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		bits[i] = fmt.Sprintf("%08b", s[i])
	}
	return strings.Join(bits, " ")
}

// randomMarker picks a rune from the Unicode private use area, which never
// appears in organic text.
func randomMarker() string {
	return string(rune(0xE000 + rand.Intn(0xF8FF-0xE000+1)))
}

// Spotlighter applies one configured transform to content.
type Spotlighter struct {
	method string
	start  string
	end    string
	marker string
}

// Option adjusts a Spotlighter.
type Option func(*Spotlighter)

// WithDelimiters overrides the delimit start/end strings.
func WithDelimiters(start, end string) Option {
	return func(sp *Spotlighter) {
		sp.start = start
		sp.end = end
	}
}

// WithMarker overrides the datamark marker.
func WithMarker(marker string) Option {
	return func(sp *Spotlighter) {
		sp.marker = marker
	}
}

// New creates a Spotlighter for the given method.
func New(method string, opts ...Option) (*Spotlighter, error) {
	switch method {
	case MethodDelimit, MethodDatamark, MethodBase64, MethodHex, MethodROT13, MethodBinary, MethodLayered:
	default:
		return nil, fmt.Errorf("unknown spotlighting method: %q", method)
	}

	sp := &Spotlighter{
		method: method,
		start:  DefaultStart,
		end:    DefaultEnd,
		marker: randomMarker(),
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp, nil
}

// Method returns the configured transform name.
func (sp *Spotlighter) Method() string { return sp.method }

// Process applies the configured transform.
func (sp *Spotlighter) Process(s string) string {
	switch sp.method {
	case MethodDelimit:
		return Delimit(s, sp.start, sp.end)
	case MethodDatamark:
		return Datamark(s, sp.marker)
	case MethodBase64:
		return EncodeBase64(s)
	case MethodHex:
		return EncodeHex(s)
	case MethodROT13:
		return ROT13(s)
	case MethodBinary:
		return Binary(s)
	case MethodLayered:
		return EncodeLayered(s)
	default:
		return s
	}
}
