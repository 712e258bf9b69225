package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/srikarv/eduinsights/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestSolveSendsTrueCaptchaPayload(t *testing.T) {
	var got solveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(solveResponse{Result: "a1b2c3"})
	}))
	defer srv.Close()

	c := NewClient(Config{
		Endpoint: srv.URL,
		UserID:   "user@example.com",
		APIKey:   "secret",
		Timeout:  2 * time.Second,
	}, testLogger())

	image := []byte{0x89, 0x50, 0x4e, 0x47}
	text, err := c.Solve(context.Background(), image, "1OX21CS001")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if text != "a1b2c3" {
		t.Fatalf("expected solved text a1b2c3, got %q", text)
	}

	if got.UserID != "user@example.com" || got.APIKey != "secret" {
		t.Fatalf("credentials not forwarded: %+v", got)
	}
	if got.Mode != "auto" || got.LenStr != "6" {
		t.Fatalf("expected mode=auto len_str=6, got mode=%q len_str=%q", got.Mode, got.LenStr)
	}
	if got.Tag != "1OX21CS001" {
		t.Fatalf("expected tag 1OX21CS001, got %q", got.Tag)
	}
	if got.Data != base64.StdEncoding.EncodeToString(image) {
		t.Fatalf("image bytes not base64-encoded correctly")
	}
}

func TestSolveNon200IsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, UserID: "u", APIKey: "k"}, testLogger())

	_, err := c.Solve(context.Background(), []byte("img"), "tag")
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestSolveTimeoutIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, UserID: "u", APIKey: "k", Timeout: 50 * time.Millisecond}, testLogger())

	_, err := c.Solve(context.Background(), []byte("img"), "tag")
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService on timeout, got %v", err)
	}
}
