package marks

import (
	"errors"
	"fmt"

	"github.com/srikarv/eduinsights/internal/models"
)

// ErrNoCredits indicates an SGPA computation over subjects whose
// credits sum to zero.
var ErrNoCredits = errors.New("credits sum to zero")

// GradeFor derives the grade classification from the portal's result
// code and the total score. Failed and absent results grade as such
// regardless of total.
func GradeFor(result string, total int) string {
	switch result {
	case models.ResultPass:
		switch {
		case total >= 75:
			return models.GradeFCD
		case total >= 60:
			return models.GradeFC
		default:
			return models.GradeSC
		}
	case models.ResultFail:
		return models.GradeFail
	case models.ResultAbsent:
		return models.GradeAbsent
	default:
		return ""
	}
}

// gradePoints maps a subject total to its grade-point value.
func gradePoints(total int) int {
	switch {
	case total >= 90:
		return 10
	case total >= 80:
		return 9
	case total >= 70:
		return 8
	case total >= 60:
		return 7
	case total >= 50:
		return 6
	case total >= 40:
		return 5
	default:
		return 0
	}
}

// SGPA computes the credit-weighted semester grade point average.
func SGPA(totals []int, credits []int) (float64, error) {
	if len(totals) != len(credits) {
		return 0, fmt.Errorf("totals and credits length mismatch: %d vs %d", len(totals), len(credits))
	}

	sumPoints := 0
	sumCredits := 0
	for i, total := range totals {
		sumPoints += gradePoints(total) * credits[i]
		sumCredits += credits[i]
	}

	if sumCredits == 0 {
		return 0, ErrNoCredits
	}
	return float64(sumPoints) / float64(sumCredits), nil
}

// ValidateBounds checks a scraped subject mark against the score
// ranges the schema enforces.
func ValidateBounds(m models.SubjectMark) error {
	if m.Internal < 0 || m.Internal > 50 {
		return fmt.Errorf("internal %d out of range [0,50]", m.Internal)
	}
	if m.External < 0 || m.External > 50 {
		return fmt.Errorf("external %d out of range [0,50]", m.External)
	}
	if m.Total < 0 || m.Total > 100 {
		return fmt.Errorf("total %d out of range [0,100]", m.Total)
	}
	return nil
}
