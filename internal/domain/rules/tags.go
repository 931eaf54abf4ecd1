// Package rules holds the pure husbandry rules: tag numbering, breeding date
// projection, parentage comparison and status transitions.
package rules

import (
	"fmt"
	"strings"
)

// DefaultTagPrefix is used when a farm has not configured its own prefix.
const DefaultTagPrefix = "RB"

// GenerateTag renders "{prefix}-{breed}-{sequence}" with a zero-padded sequence.
// Sequences wider than four digits are printed in full.
func GenerateTag(prefix, breedCode string, sequence int64) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultTagPrefix
	}
	breedCode = strings.ToUpper(strings.TrimSpace(breedCode))
	return fmt.Sprintf("%s-%s-%04d", prefix, breedCode, sequence)
}
