// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

/*
yp_codec.go - YP Wire Obfuscation Codec

The YP vendor wraps its JSON payloads in a character-offset encoding:

	encode(plaintext, keyA) = HEX(c1+keyB) "-" HEX(c2+keyB) "-" ... "|" keyA

where keyA is a local timestamp of the form "yyyy-MM-dd HH:mm:ss:000" and
keyB is the integer parsed from the segment after keyA's last colon. The
millisecond segment is the literal "000" in the observed wire traffic, so
keyB is effectively always 0; the parsing is kept general in case the vendor
ever varies it.
*/

package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ypKeyA formats a timestamp as the vendor's key string. The millisecond
// segment is the literal "000" per the vendor contract.
func ypKeyA(t time.Time) string {
	return t.Format("2006-01-02 15:04:05") + ":000"
}

// ypParseKeyB extracts the offset key from a keyA string: the integer value
// of the segment after the last colon. Missing or non-numeric segments
// yield 0.
func ypParseKeyB(keyA string) int {
	idx := strings.LastIndex(keyA, ":")
	if idx < 0 || idx+1 >= len(keyA) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(keyA[idx+1:]))
	if err != nil {
		return 0
	}
	return n
}

// ypEncode obfuscates plaintext with the offset derived from keyA: each
// character code plus keyB, uppercase hex, joined with "-", with keyA
// appended after "|".
func ypEncode(plaintext, keyA string) string {
	keyB := ypParseKeyB(keyA)

	var b strings.Builder
	for i, ch := range []rune(plaintext) {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%X", int(ch)+keyB)
	}
	b.WriteByte('|')
	b.WriteString(keyA)
	return b.String()
}

// ypDecode reverses ypEncode: the segment after "|" yields keyB, the hex
// tokens before it are cleaned of non-alphanumeric characters, parsed, and
// shifted back by keyB.
func ypDecode(encoded string) (string, error) {
	parts := strings.SplitN(encoded, "|", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("yp payload missing key segment")
	}
	keyB := ypParseKeyB(parts[1])

	var b strings.Builder
	for _, token := range strings.Split(parts[0], "-") {
		cleaned := stripNonAlphanumeric(token)
		if cleaned == "" {
			continue
		}
		code, err := strconv.ParseInt(cleaned, 16, 32)
		if err != nil {
			return "", fmt.Errorf("yp payload token %q is not hex: %w", token, err)
		}
		b.WriteRune(rune(int(code) - keyB))
	}
	return b.String(), nil
}

// stripNonAlphanumeric drops every character outside [0-9A-Za-z].
func stripNonAlphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			return r
		default:
			return -1
		}
	}, s)
}
