/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package delta

import (
	"fmt"
	"strings"

	"github.com/spiderwiz/fabric/core/wire"
)

const (
	stringDeltaPrefix = ':'
	minDeltaLen       = 5     // spec §4.2: strings shorter than this are never delta'd
	maxDeltaWork      = 30000 // |prev|*|cur| search bound before falling through to literal
)

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var b64Value [256]int

func init() {
	for i := range b64Value {
		b64Value[i] = -1
	}
	for i := 0; i < len(b64Alphabet); i++ {
		b64Value[b64Alphabet[i]] = i
	}
}

func encodeB64(n int) string {
	if n == 0 {
		return string(b64Alphabet[0])
	}
	var digits []byte
	for n > 0 {
		digits = append(digits, b64Alphabet[n%64])
		n /= 64
	}
	// reverse into big-endian order
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

func decodeB64(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("delta: empty base-64 run")
	}
	n := 0
	for i := 0; i < len(s); i++ {
		v := b64Value[s[i]]
		if v < 0 {
			return 0, fmt.Errorf("delta: invalid base-64 digit %q", s[i])
		}
		n = n*64 + v
	}
	return n, nil
}

// EncodeString renders cur as a common-prefix/common-suffix delta against
// prev (spec §4.2's longest-common-substring family, specialized to the
// two runs anchored at either end, which keeps the search linear). Falls
// through to a plain escaped literal whenever that is not strictly shorter,
// when cur is too short to bother, or when |prev|*|cur| exceeds the 30000
// work bound.
func EncodeString(prev, cur string) string {
	if len(cur) < minDeltaLen {
		return wire.Escape(cur)
	}
	if len(prev)*len(cur) > maxDeltaWork {
		return wire.Escape(cur)
	}
	prefix := commonPrefixLen(prev, cur)
	suffix := commonSuffixLen(prev[prefix:], cur[prefix:])
	middle := cur[prefix : len(cur)-suffix]

	// Escape() never emits a raw ':' (Colon is in the escape map), so the
	// three fields below can be split back out unambiguously on ':'.
	encoded := string(stringDeltaPrefix) + encodeB64(prefix) + string(stringDeltaPrefix) +
		wire.Escape(middle) + string(stringDeltaPrefix) + encodeB64(suffix)

	literal := wire.Escape(cur)
	if len(encoded) < len(literal) {
		return encoded
	}
	return literal
}

// DecodeString is EncodeString's inverse.
func DecodeString(prev, s string) (string, error) {
	if s == "" || s[0] != stringDeltaPrefix {
		return wire.Unescape(s), nil
	}
	parts := strings.Split(s[1:], string(stringDeltaPrefix))
	if len(parts) != 3 {
		return "", fmt.Errorf("delta: malformed string delta %q", s)
	}
	prefixLen, err := decodeB64(parts[0])
	if err != nil {
		return "", err
	}
	suffixLen, err := decodeB64(parts[2])
	if err != nil {
		return "", err
	}
	middle := wire.Unescape(parts[1])
	if prefixLen+suffixLen > len(prev) {
		return "", fmt.Errorf("delta: prefix+suffix %d exceeds prev length %d", prefixLen+suffixLen, len(prev))
	}
	var b strings.Builder
	b.WriteString(prev[:prefixLen])
	b.WriteString(middle)
	b.WriteString(prev[len(prev)-suffixLen:])
	return b.String(), nil
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
