package utils

import "testing"

func TestSplitUSN(t *testing.T) {
	prefix, suffix, err := SplitUSN("1OX21CS042")
	if err != nil {
		t.Fatalf("SplitUSN returned error: %v", err)
	}
	if prefix != "1OX21CS" {
		t.Fatalf("expected prefix 1OX21CS, got %q", prefix)
	}
	if suffix != 42 {
		t.Fatalf("expected suffix 42, got %d", suffix)
	}
}

func TestSplitUSNRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"1OX21CS04",    // too short
		"1OX21CS0420",  // too long
		"1OX21CS0AB",   // non-numeric suffix
	}
	for _, usn := range cases {
		if _, _, err := SplitUSN(usn); err == nil {
			t.Fatalf("expected error for %q, got nil", usn)
		}
	}
}

func TestFormatUSNZeroPads(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{1, "1OX21CS001"},
		{42, "1OX21CS042"},
		{100, "1OX21CS100"},
		{999, "1OX21CS999"},
	}
	for _, tc := range cases {
		if got := FormatUSN("1OX21CS", tc.n); got != tc.want {
			t.Fatalf("FormatUSN(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
