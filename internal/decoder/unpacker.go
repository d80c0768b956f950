package decoder

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	packedRe = regexp.MustCompile(`(?i)eval\(function\(p,a,c,k,e,[rd]?`)

	// Captures payload, radix, symbol count and the |-separated symbol table
	// from the tail of a packer invocation.
	packedExtractRe = regexp.MustCompile(`(?i)\}\('(.*)', *(\d+), *(\d+), *'(.*?)'\.split\('\|'\)`)

	wordRe = regexp.MustCompile(`\b\w+\b`)
)

// DetectPacked reports whether a script block contains code compressed by
// the common eval(function(p,a,c,k,e,d){...}) packing scheme.
func DetectPacked(script string) bool {
	return packedRe.MatchString(script)
}

// UnpackAll reverses every packed block found in the script, one unpacked
// string per block. Already-plain input yields no results, not an error.
func UnpackAll(script string) []string {
	if !DetectPacked(script) {
		return nil
	}

	var unpacked []string
	for _, m := range packedExtractRe.FindAllStringSubmatch(script, -1) {
		payload, radixStr, countStr, symtabStr := m[1], m[2], m[3], m[4]
		if payload == "" || symtabStr == "" {
			continue
		}

		symtab := strings.Split(symtabStr, "|")
		radix, err := strconv.Atoi(radixStr)
		if err != nil {
			radix = 10
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			count = 0
		}

		// A table that does not match the declared count means the payload
		// is not substitutable; leave it untouched.
		if len(symtab) != count {
			continue
		}

		unbaser := NewUnbaser(radix)
		unpacked = append(unpacked, wordRe.ReplaceAllStringFunc(payload, func(word string) string {
			idx := unbaser.Unbase(word)
			if idx >= 0 && idx < len(symtab) && symtab[idx] != "" {
				return symtab[idx]
			}
			return word
		}))
	}
	return unpacked
}

// UnpackAndCombine joins all unpacked blocks with spaces so callers can
// search across them with a single pass. The second result is false when
// the input contains no packed code.
func UnpackAndCombine(script string) (string, bool) {
	unpacked := UnpackAll(script)
	if len(unpacked) == 0 {
		return "", false
	}
	return strings.Join(unpacked, " "), true
}
