package marks

import (
	"errors"
	"math"
	"testing"

	"github.com/srikarv/eduinsights/internal/models"
)

func TestGradeForBoundaries(t *testing.T) {
	cases := []struct {
		result string
		total  int
		want   string
	}{
		{"P", 75, "FCD"},
		{"P", 74, "FC"},
		{"P", 60, "FC"},
		{"P", 59, "SC"},
		{"P", 100, "FCD"},
		{"P", 0, "SC"},
		{"F", 90, "FAIL"},
		{"F", 10, "FAIL"},
		{"A", 0, "ABSENT"},
	}
	for _, tc := range cases {
		if got := GradeFor(tc.result, tc.total); got != tc.want {
			t.Fatalf("GradeFor(%q, %d) = %q, want %q", tc.result, tc.total, got, tc.want)
		}
	}
}

func TestSGPA(t *testing.T) {
	totals := []int{95, 82, 71, 65, 55, 42}
	credits := []int{4, 4, 3, 3, 2, 2}

	got, err := SGPA(totals, credits)
	if err != nil {
		t.Fatalf("SGPA returned error: %v", err)
	}

	want := 143.0 / 18.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("SGPA = %v, want %v", got, want)
	}
}

func TestSGPANoCredits(t *testing.T) {
	_, err := SGPA([]int{80}, []int{0})
	if !errors.Is(err, ErrNoCredits) {
		t.Fatalf("expected ErrNoCredits, got %v", err)
	}
}

func TestSGPALengthMismatch(t *testing.T) {
	if _, err := SGPA([]int{80, 70}, []int{4}); err == nil {
		t.Fatal("expected error for mismatched slice lengths")
	}
}

func TestValidateBounds(t *testing.T) {
	ok := models.SubjectMark{Internal: 25, External: 40, Total: 65, Result: "P"}
	if err := ValidateBounds(ok); err != nil {
		t.Fatalf("unexpected error for in-range mark: %v", err)
	}

	bad := []models.SubjectMark{
		{Internal: 51, External: 10, Total: 61},
		{Internal: 10, External: -1, Total: 9},
		{Internal: 50, External: 50, Total: 101},
	}
	for _, m := range bad {
		if err := ValidateBounds(m); err == nil {
			t.Fatalf("expected bounds error for %+v", m)
		}
	}
}
