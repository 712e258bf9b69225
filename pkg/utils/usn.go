package utils

import (
	"fmt"
	"strconv"
)

// USNLength is the fixed width of a University Seat Number.
// The first 7 characters encode college, year and branch; the
// last 3 are a zero-padded decimal suffix.
const (
	USNLength       = 10
	USNPrefixLength = 7
)

// ValidateUSN checks that usn is a well-formed University Seat Number.
func ValidateUSN(usn string) error {
	if len(usn) != USNLength {
		return fmt.Errorf("usn %q must be %d characters", usn, USNLength)
	}
	for _, ch := range usn[USNPrefixLength:] {
		if ch < '0' || ch > '9' {
			return fmt.Errorf("usn %q must end in a 3-digit suffix", usn)
		}
	}
	return nil
}

// SplitUSN splits a USN into its 7-character prefix and numeric suffix.
func SplitUSN(usn string) (string, int, error) {
	if err := ValidateUSN(usn); err != nil {
		return "", 0, err
	}
	suffix, _ := strconv.Atoi(usn[USNPrefixLength:])
	return usn[:USNPrefixLength], suffix, nil
}

// FormatUSN assembles a USN from a prefix and a numeric suffix,
// always zero-padding the suffix to 3 digits.
func FormatUSN(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}
