package connectivity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOnlineWhenProbeAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL)
	if !p.Online() {
		t.Error("expected online")
	}
}

func TestOfflineWhenProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := New(srv.URL)
	if p.Online() {
		t.Error("expected offline")
	}
}

func TestOnlineResultCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL)
	p.Online()
	p.Online()
	p.Online()
	if hits != 1 {
		t.Errorf("probe hits = %d, want 1", hits)
	}
}
