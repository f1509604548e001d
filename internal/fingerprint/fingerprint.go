// Package fingerprint derives the stable identity key used to group birth
// queries for deduplication and free reuse.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Build computes the fingerprint for the semantically significant subset of a
// birth query: email, gender, birth date and birth hour. Birth minute and
// location are deliberately excluded, so two submissions that differ only in
// those fields share a fingerprint.
func Build(email, gender, birthDate string, birthHour int) string {
	canonical := fmt.Sprintf("%s|%s|%s|%d",
		strings.ToLower(strings.TrimSpace(email)),
		gender,
		birthDate,
		birthHour,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
