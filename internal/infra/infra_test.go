package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)
	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("Get(a): got %v, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len: got %d, want 1", got)
	}
	if got := c.Cleanup(); got != 1 {
		t.Errorf("Cleanup: got %d, want 1", got)
	}
	if c.Touch("a") {
		t.Error("Touch on expired key should fail")
	}
	if !c.Touch("b") {
		t.Error("Touch on live key should succeed")
	}

	c.Invalidate("b")
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone")
	}
}

func TestLimiterBurstThenWait(t *testing.T) {
	rl := NewLimiter(2, time.Hour)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("first two tokens should be available")
	}
	if rl.Allow() {
		t.Error("bucket should be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait should fail when the next token is beyond the deadline")
	}
}

func TestLimiterRateMatchesWindow(t *testing.T) {
	rl := NewLimiter(10, time.Second)
	if got := float64(rl.Limit()); got < 9.999 || got > 10.001 {
		t.Errorf("limit: got %v/s, want 10/s", got)
	}
	if rl.Burst() != 10 {
		t.Errorf("burst: got %d, want 10", rl.Burst())
	}

	// 10 from the burst plus 3 refilled at 10/s: about 300ms.
	start := time.Now()
	for i := 0; i < 13; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("13 waits at 10/s took %v", elapsed)
	}
}

func TestLimiterDisabled(t *testing.T) {
	rl := NewLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow %d: disabled limiter should never refuse", i)
		}
	}
}

func TestDoGetSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Key") != "k1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	body, status, err := DoGet(context.Background(), srv.URL, map[string]string{"X-Key": "k1"})
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	if status != http.StatusTeapot {
		t.Errorf("status: got %d, want %d", status, http.StatusTeapot)
	}
	if string(body) != "short and stout" {
		t.Errorf("body: got %q", body)
	}
}

func TestDoPostJSON(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	_, status, err := DoPostJSON(context.Background(), srv.URL, map[string]string{"bond_id": "ACME2025"}, nil)
	if err != nil {
		t.Fatalf("DoPostJSON: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status: got %d, want 200", status)
	}
	if got["bond_id"] != "ACME2025" {
		t.Errorf("payload: got %v", got)
	}
}

func TestDoGetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := DoGet(ctx, srv.URL, nil); err == nil {
		t.Error("expected timeout error")
	}
}
