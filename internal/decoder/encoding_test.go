package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64Lenient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"padded", "aGVsbG8=", "hello"},
		{"unpadded", "aGVsbG8", "hello"},
		{"escaped", `aGVsb\G8=`, "hello"},
		{"surrounding whitespace", "  aGVsbG8=\n", "hello"},
	}

	for _, tt := range tests {
		data, err := DecodeBase64Lenient(tt.input)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.expected, string(data), tt.name)
	}

	_, err := DecodeBase64Lenient("!!!not base64!!!")
	assert.Error(t, err)
}

func TestReverse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("cba"), ReverseBytes([]byte("abc")))
	assert.Equal(t, "cba", ReverseString("abc"))
	assert.Equal(t, "", ReverseString(""))
	assert.Equal(t, "ßürg", ReverseString("grüß"))
}

func TestSwapCase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hELLO wORLD", SwapCase("Hello World"))
	assert.Equal(t, "123-_", SwapCase("123-_"))
	assert.Equal(t, "AbC", SwapCase(SwapCase("AbC")))
}

func TestRot13(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "uryyb", Rot13("hello"))
	assert.Equal(t, "HELLO", Rot13("URYYB"))
	assert.Equal(t, "hello", Rot13(Rot13("hello")))
	assert.Equal(t, "123 {}", Rot13("123 {}"))
}

func TestShiftChars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", ShiftChars("def", 3))
	assert.Equal(t, "def", ShiftChars("abc", -3))
	assert.Equal(t, "unchanged", ShiftChars("unchanged", 0))
}
