// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minghsu/parksense/internal/config"
)

func newNHRTestClient(endpoint string) *NHRClient {
	return NewNHRClient(config.NHRConfig{Endpoint: endpoint, Timeout: 5 * time.Second})
}

func TestNHRFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("form parse: %v", err)
		}
		if r.PostForm.Get("pno") != "NHR-7" {
			t.Errorf("expected pno NHR-7, got %s", r.PostForm.Get("pno"))
		}
		fmt.Fprint(w, `[{"retCode":1,"retVal":{"normalInCar":42}}]`)
	}))
	defer srv.Close()

	c := newNHRTestClient(srv.URL)
	snap, err := c.Fetch(context.Background(), "NHR-7", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.ParkedCount != 42 || snap.RemainingCount != 18 || snap.AdmittedCount != 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestNHRVendorErrorRetCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"retCode":0}]`)
	}))
	defer srv.Close()

	c := newNHRTestClient(srv.URL)
	snap, err := c.Fetch(context.Background(), "NHR-7", 60)
	if err != nil || snap != nil {
		t.Errorf("expected (nil, nil) for retCode != 1, got (%+v, %v)", snap, err)
	}
}

func TestNHREmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := newNHRTestClient(srv.URL)
	snap, err := c.Fetch(context.Background(), "NHR-7", 60)
	if err != nil || snap != nil {
		t.Errorf("expected (nil, nil) for empty array, got (%+v, %v)", snap, err)
	}
}
