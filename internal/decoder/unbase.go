// Package decoder implements the deobfuscation primitives shared by the
// per-host extractors: packed-script unpacking, bracket-expression
// evaluation, CryptoJS-compatible AES and the small byte/string codecs
// the hosts chain together.
package decoder

import "strconv"

// unbaseAlphabets maps the radixes the Dean Edwards packer emits beyond
// strconv's reach to their digit alphabets.
var unbaseAlphabets = map[int]string{
	52: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP",
	54: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQR",
	62: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	95: " !\"#$%&'()*+,-./0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_`abcdefghijklmnopqrstuvwxyz{|}~",
}

// Unbaser converts tokens in an arbitrary radix into integer indexes.
// Invalid digits and unknown radixes yield 0; callers gate on packed-script
// detection before trusting the result.
type Unbaser struct {
	base  int
	index map[byte]int
}

// NewUnbaser creates an Unbaser for the given radix.
func NewUnbaser(base int) *Unbaser {
	u := &Unbaser{base: base}
	if alphabet, ok := unbaseAlphabets[base]; ok && base > 36 {
		u.index = make(map[byte]int, len(alphabet))
		for i := 0; i < len(alphabet); i++ {
			u.index[alphabet[i]] = i
		}
	}
	return u
}

// Unbase converts a token in the configured radix to an integer.
func (u *Unbaser) Unbase(value string) int {
	if u.base >= 2 && u.base <= 36 {
		n, err := strconv.ParseInt(value, u.base, 64)
		if err != nil {
			return 0
		}
		return int(n)
	}

	if u.index == nil {
		return 0
	}

	// Rightmost input character carries weight base^0.
	n := 0
	weight := 1
	for i := len(value) - 1; i >= 0; i-- {
		n += u.index[value[i]] * weight
		weight *= u.base
	}
	return n
}
