// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newYPTestServer decodes the request, checks the plaintext command, and
// answers with the provided JSON encoded in the same scheme.
func newYPTestServer(t *testing.T, wantPlaintext, responseJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request: %v", err)
		}
		decoded, err := ypDecode(string(body))
		if err != nil {
			t.Errorf("decode request: %v", err)
		}
		if decoded != wantPlaintext {
			t.Errorf("request plaintext = %q, want %q", decoded, wantPlaintext)
		}

		_, _ = io.WriteString(w, ypEncode(responseJSON, ypKeyA(time.Now())))
	}))
}

func TestYPFetchSuccess(t *testing.T) {
	srv := newYPTestServer(t,
		`{"Type":1,"Target":"D42","API":"GetCarSpace"}`,
		`{"space":[{"carType":2,"allSpace":10,"leftSpace":3},{"carType":1,"allSpace":120,"leftSpace":37}]}`)
	defer srv.Close()

	c := NewYPClient(5 * time.Second)
	snap, err := c.Fetch(context.Background(), srv.URL, "D42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.ParkedCount != 83 || snap.RemainingCount != 37 || snap.AdmittedCount != 120 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestYPFetchNoStandardCarType(t *testing.T) {
	srv := newYPTestServer(t,
		`{"Type":1,"Target":"D42","API":"GetCarSpace"}`,
		`{"space":[{"carType":2,"allSpace":10,"leftSpace":3}]}`)
	defer srv.Close()

	c := NewYPClient(5 * time.Second)
	snap, err := c.Fetch(context.Background(), srv.URL, "D42")
	if err != nil || snap != nil {
		t.Errorf("expected (nil, nil) without carType 1, got (%+v, %v)", snap, err)
	}
}

func TestYPFetchUndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not an encoded payload")
	}))
	defer srv.Close()

	c := NewYPClient(5 * time.Second)
	snap, err := c.Fetch(context.Background(), srv.URL, "D42")
	if err != nil || snap != nil {
		t.Errorf("decode failure must yield (nil, nil), got (%+v, %v)", snap, err)
	}
}

func TestYPFetchServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewYPClient(5 * time.Second)
	snap, err := c.Fetch(context.Background(), srv.URL, "D42")
	if snap != nil {
		t.Errorf("expected no snapshot, got %+v", snap)
	}
	if err == nil {
		t.Fatal("expected retryable error for 502")
	}
}
