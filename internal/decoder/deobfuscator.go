package decoder

import "strings"

// DeobfuscateJSPassword evaluates the JSFuck-style bracket expressions some
// hosts use to hide a password string. Each [...] group encodes one ASCII
// digit, each (...) group a method-call dot. Unbalanced input degrades to
// returning the input unchanged.
func DeobfuscateJSPassword(input string) string {
	var out strings.Builder
	idx := 0

	for idx < len(input) {
		ch := input[idx]
		if ch != '[' && ch != '(' {
			idx++
			continue
		}

		closing := matchingBracketIndex(input, idx)
		if closing < 0 {
			return input
		}

		if ch == '[' {
			out.WriteString(calculateDigit(input[idx : closing+1]))
		} else {
			out.WriteByte('.')
			// A bracket group right after a paren group indexes a method
			// name; skip it without emitting a digit.
			if closing+1 < len(input) && input[closing+1] == '[' {
				skip := matchingBracketIndex(input, closing+1)
				if skip < 0 {
					return input
				}
				idx = skip + 1
				continue
			}
		}
		idx = closing + 1
	}

	return out.String()
}

// matchingBracketIndex finds the closing bracket matching the opener at
// openingIndex, counting nested occurrences of the same bracket character
// only. Returns -1 when the input is unbalanced or the scan runs out.
func matchingBracketIndex(input string, openingIndex int) int {
	opening := input[openingIndex]
	var closing byte = ')'
	if opening == '[' {
		closing = ']'
	}

	counter := 0
	for idx := openingIndex; idx < len(input); idx++ {
		if input[idx] == opening {
			counter++
		}
		if input[idx] == closing {
			counter--
		}
		if counter == 0 {
			return idx
		}
		if counter < 0 {
			return -1
		}
	}
	return -1
}

// calculateDigit evaluates one [...] group. A count of n occurrences of
// "!+[]" is the digit n; a lone "+[]" is zero; anything else is the
// illegal-digit sentinel "-".
func calculateDigit(group string) string {
	digit := strings.Count(group, "!+[]")
	switch {
	case digit == 0:
		if strings.Count(group, "+[]") == 1 {
			return "0"
		}
	case digit >= 1 && digit <= 9:
		return string(rune('0' + digit))
	}
	return "-"
}
