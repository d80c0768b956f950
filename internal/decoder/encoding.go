package decoder

import (
	"encoding/base64"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// DecodeBase64Lenient decodes base64 that hosts emit without padding or
// with stray backslashes.
func DecodeBase64Lenient(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.TrimSpace(s)
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decoder: invalid base64")
	}
	return data, nil
}

// ReverseBytes returns a reversed copy of b.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// ReverseString reverses s rune-wise.
func ReverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// SwapCase flips the case of every letter in s.
func SwapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsUpper(r):
			return unicode.ToLower(r)
		case unicode.IsLower(r):
			return unicode.ToUpper(r)
		}
		return r
	}, s)
}

// Rot13 applies the ROT13 cipher to ASCII letters, leaving everything
// else untouched.
func Rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		}
		return r
	}, s)
}

// ShiftChars subtracts offset from every code point; hosts use it to
// decode byte-shifted blobs.
func ShiftChars(s string, offset int) string {
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		out.WriteRune(r - rune(offset))
	}
	return out.String()
}
