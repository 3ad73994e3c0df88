package http

import (
	"net/http/httptest"
	"testing"
)

func TestValidGrade(t *testing.T) {
	for _, grade := range []int{2, 3, 4, 5, 6} {
		if !validGrade(grade) {
			t.Fatalf("expected grade %d to be valid", grade)
		}
	}
	for _, grade := range []int{0, 1, 7, -2} {
		if validGrade(grade) {
			t.Fatalf("expected grade %d to be invalid", grade)
		}
	}
}

func TestValidResult(t *testing.T) {
	for _, result := range []string{"player1", "player2", "draw"} {
		if !validResult(result) {
			t.Fatalf("expected result %s to be valid", result)
		}
	}
	if validResult("winner") || validResult("") {
		t.Fatalf("expected unknown result to be invalid")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
		"Bearer  xy ": "xy",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, expect)
		}
	}
}

func TestParseLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/matches?limit=25", nil)
	if got := parseLimit(r, 10); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	r = httptest.NewRequest("GET", "/matches", nil)
	if got := parseLimit(r, 10); got != 10 {
		t.Fatalf("expected fallback 10, got %d", got)
	}
	r = httptest.NewRequest("GET", "/matches?limit=-1", nil)
	if got := parseLimit(r, 10); got != 10 {
		t.Fatalf("expected fallback for negative limit, got %d", got)
	}
}

func TestRequestDate(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	date, ok := s.requestDate(w, "2026-01-21")
	if !ok || date != "2026-01-21" {
		t.Fatalf("expected explicit date accepted, got %q ok=%v", date, ok)
	}

	w = httptest.NewRecorder()
	if _, ok := s.requestDate(w, "21/01/2026"); ok {
		t.Fatalf("expected malformed date rejected")
	}

	w = httptest.NewRecorder()
	date, ok = s.requestDate(w, "")
	if !ok || len(date) != len("2006-01-02") {
		t.Fatalf("expected default target date, got %q", date)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "10.0.0.3")
	if got := clientIP(r); got != "10.0.0.3" {
		t.Fatalf("expected real ip, got %q", got)
	}
}
