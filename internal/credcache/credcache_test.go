// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package credcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrRefreshCachesValue(t *testing.T) {
	c := New()
	calls := 0

	refresh := func(ctx context.Context) (string, error) {
		calls++
		return "sid-1", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrRefresh(context.Background(), "mp_sid", time.Hour, refresh)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "sid-1" {
			t.Errorf("expected sid-1, got %s", v)
		}
	}

	if calls != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", calls)
	}
}

func TestExpiredEntryTriggersSingleRefresh(t *testing.T) {
	c := New()
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("tdx_token", "tok-old", time.Minute)

	// At exactly expiresAt the entry must not be served.
	c.now = func() time.Time { return base.Add(time.Minute) }

	if _, ok := c.Get("tdx_token"); ok {
		t.Fatal("entry at expiresAt must not be returned")
	}

	calls := 0
	v, err := c.GetOrRefresh(context.Background(), "tdx_token", time.Minute, func(ctx context.Context) (string, error) {
		calls++
		return "tok-new", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "tok-new" || calls != 1 {
		t.Errorf("expected tok-new after 1 refresh, got %s after %d", v, calls)
	}
}

func TestUnexpiredEntryServedWithoutRefresh(t *testing.T) {
	c := New()
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("mp_sid", "sid-a", time.Hour)
	c.now = func() time.Time { return base.Add(59 * time.Minute) }

	v, err := c.GetOrRefresh(context.Background(), "mp_sid", time.Hour, func(ctx context.Context) (string, error) {
		t.Fatal("refresh must not run for unexpired entry")
		return "", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "sid-a" {
		t.Errorf("expected sid-a, got %s", v)
	}
}

func TestSingleflightUnderConcurrency(t *testing.T) {
	c := New()

	var calls int32
	refresh := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		return "shared-token", nil
	}

	const n = 50
	results := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrRefresh(context.Background(), "tdx_token", time.Hour, refresh)
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 refresh under %d concurrent callers, got %d", n, got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if results[i] != "shared-token" {
			t.Errorf("caller %d: expected shared-token, got %s", i, results[i])
		}
	}
}

func TestFailedRefreshLeavesCacheUnchangedAndWaitersRetry(t *testing.T) {
	c := New()

	var calls int32
	refresh := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			time.Sleep(10 * time.Millisecond)
			return "", errors.New("vendor login rejected")
		}
		return "sid-recovered", nil
	}

	var wg sync.WaitGroup
	var successes, failures int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrRefresh(context.Background(), "mp_sid", time.Hour, refresh)
			if err != nil {
				atomic.AddInt32(&failures, 1)
				return
			}
			if v != "sid-recovered" {
				t.Errorf("expected sid-recovered, got %s", v)
			}
			atomic.AddInt32(&successes, 1)
		}()
	}
	wg.Wait()

	// Exactly one caller observes the failure; waiters retry independently
	// after the gate releases and succeed on the second refresh.
	if failures != 1 {
		t.Errorf("expected exactly 1 failed caller, got %d", failures)
	}
	if successes != 4 {
		t.Errorf("expected 4 successful callers, got %d", successes)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 refresh calls (1 failed + 1 recovered), got %d", calls)
	}

	// Cache now holds the recovered value.
	if v, ok := c.Get("mp_sid"); !ok || v != "sid-recovered" {
		t.Errorf("expected cached sid-recovered, got %q (ok=%v)", v, ok)
	}
}

func TestIndependentKeysDoNotSerialize(t *testing.T) {
	c := New()

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.GetOrRefresh(context.Background(), "slow_key", time.Hour, func(ctx context.Context) (string, error) {
			<-block
			return "slow", nil
		})
	}()

	// A refresh on a different key must not wait for slow_key's gate.
	done := make(chan struct{})
	go func() {
		_, _ = c.GetOrRefresh(context.Background(), "fast_key", time.Hour, func(ctx context.Context) (string, error) {
			return "fast", nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("refresh of independent key blocked by another key's gate")
	}

	close(block)
	wg.Wait()
}

func TestInvalidate(t *testing.T) {
	c := New()
	c.Set("mp_sid", "sid-x", time.Hour)
	c.Invalidate("mp_sid")

	if _, ok := c.Get("mp_sid"); ok {
		t.Error("expected entry to be gone after Invalidate")
	}
}

func TestConcurrentDistinctKeys(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%4)
			_, err := c.GetOrRefresh(context.Background(), key, time.Hour, func(ctx context.Context) (string, error) {
				return key + "-value", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("key-%d", i)
		if v, ok := c.Get(key); !ok || v != key+"-value" {
			t.Errorf("expected %s-value, got %q (ok=%v)", key, v, ok)
		}
	}
}
