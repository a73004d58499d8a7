// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"strings"
	"testing"
	"time"
)

func TestYPKeyAFormat(t *testing.T) {
	ts := time.Date(2026, 8, 29, 14, 5, 9, 123456789, time.UTC)
	got := ypKeyA(ts)
	want := "2026-08-29 14:05:09:000"
	if got != want {
		t.Errorf("ypKeyA = %q, want %q", got, want)
	}
}

func TestYPParseKeyB(t *testing.T) {
	tests := []struct {
		keyA string
		want int
	}{
		{"2026-08-29 14:05:09:000", 0},
		{"2026-08-29 14:05:09:017", 17},
		{"no-colon-here", 0},
		{"trailing:", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ypParseKeyB(tt.keyA); got != tt.want {
			t.Errorf("ypParseKeyB(%q) = %d, want %d", tt.keyA, got, tt.want)
		}
	}
}

func TestYPEncodeKnownPayload(t *testing.T) {
	keyA := "2026-08-29 14:05:09:000"
	encoded := ypEncode("AB", keyA)

	// 'A' = 0x41, 'B' = 0x42, keyB = 0.
	want := "41-42|" + keyA
	if encoded != want {
		t.Errorf("ypEncode(AB) = %q, want %q", encoded, want)
	}
}

func TestYPRoundTrip(t *testing.T) {
	payloads := []string{
		`{"Type":1,"Target":"D42","API":"GetCarSpace"}`,
		`{"space":[{"carType":1,"allSpace":120,"leftSpace":37}]}`,
		"plain text with spaces",
		"",
	}
	keys := []string{
		"2026-08-29 14:05:09:000",
		"1999-01-01 00:00:00:000",
		"2026-12-31 23:59:59:025", // nonzero keyB still round-trips
	}

	for _, payload := range payloads {
		for _, keyA := range keys {
			decoded, err := ypDecode(ypEncode(payload, keyA))
			if err != nil {
				t.Fatalf("decode(encode(%q, %q)): %v", payload, keyA, err)
			}
			if decoded != payload {
				t.Errorf("round trip with key %q: got %q, want %q", keyA, decoded, payload)
			}
		}
	}
}

func TestYPDecodeStripsNoise(t *testing.T) {
	// Tokens may carry stray non-alphanumeric characters on the wire.
	decoded, err := ypDecode(" 41 - 42 |2026-08-29 14:05:09:000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != "AB" {
		t.Errorf("expected AB, got %q", decoded)
	}
}

func TestYPDecodeMissingKeySegment(t *testing.T) {
	if _, err := ypDecode("41-42"); err == nil {
		t.Error("expected error for payload without key segment")
	}
}

func TestYPDecodeBadHexToken(t *testing.T) {
	if _, err := ypDecode("4G1-zzz£|2026-08-29 14:05:09:000"); err == nil {
		t.Error("expected error for non-hex token")
	}
}

func TestYPEncodeAppendsKeyA(t *testing.T) {
	keyA := "2026-08-29 14:05:09:000"
	encoded := ypEncode("x", keyA)
	if !strings.HasSuffix(encoded, "|"+keyA) {
		t.Errorf("encoded payload must end with |keyA, got %q", encoded)
	}
}
