package scraper

import "testing"

func TestSucceeded(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{StatusSuccess, true},
		{11, true},
		{12, true},
		{21, true},
		{22, true},
		{StatusInvalidUSN, false},
		{StatusCaptchaExhausted, false},
		{StatusTimeoutExhausted, false},
		{StatusDNSFailure, false},
		{StatusDriverError, false},
		{StatusUnknownError, false},
		{StatusRefusedExhausted, false},
	}
	for _, tc := range cases {
		if got := Succeeded(tc.code); got != tc.want {
			t.Fatalf("Succeeded(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestRetryCounts(t *testing.T) {
	if got := CaptchaRetries(12); got != 2 {
		t.Fatalf("CaptchaRetries(12) = %d, want 2", got)
	}
	if got := CaptchaRetries(21); got != 0 {
		t.Fatalf("CaptchaRetries(21) = %d, want 0 (timeout encoding)", got)
	}
	if got := TimeoutRetries(21); got != 1 {
		t.Fatalf("TimeoutRetries(21) = %d, want 1", got)
	}
	if got := TimeoutRetries(12); got != 0 {
		t.Fatalf("TimeoutRetries(12) = %d, want 0 (captcha encoding)", got)
	}
	if got := TimeoutRetries(StatusSuccess); got != 0 {
		t.Fatalf("TimeoutRetries(0) = %d, want 0", got)
	}
}

func TestSuccessCodeEncoding(t *testing.T) {
	if got := successCode(0, 0); got != StatusSuccess {
		t.Fatalf("successCode(0,0) = %d, want 0", got)
	}
	if got := successCode(2, 0); got != 12 {
		t.Fatalf("successCode(2,0) = %d, want 12", got)
	}
	if got := successCode(0, 1); got != 21 {
		t.Fatalf("successCode(0,1) = %d, want 21", got)
	}
	// Captcha refreshes win when both are nonzero.
	if got := successCode(1, 2); got != 11 {
		t.Fatalf("successCode(1,2) = %d, want 11", got)
	}
}
