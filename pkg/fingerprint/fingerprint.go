// Package fingerprint derives stable hashes of record sets
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Records creates a deterministic fingerprint of an input record set.
// The checkpoint stores it so a resumed run can tell whether its
// verdicts were built against the same listings.
func Records(records []*models.RawRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("%d\x1f%s\x1f%s\x1f%d", r.ID, r.Name, r.BrandOrEmpty(), r.RetailerID))
	}
	sort.Strings(lines)

	hash := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(hash[:])
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}
