package oracle

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

const matchingRules = `Matching rules:
- The brand must be the same product brand.
- Different sizes, weights or quantities are NOT a match.
- Different formulations, scents or variants are NOT a match.
- Different target audiences (men/women/kids/baby) are NOT a match.
- Ignore retailer-specific noise like promotions or packaging text.`

// pairPrompt builds the pairwise arbitration prompt.
func pairPrompt(a, b *models.RawRecord) string {
	var sb strings.Builder
	sb.WriteString("You compare two retail product listings and decide whether they describe the exact same core product.\n\n")
	sb.WriteString(matchingRules)
	sb.WriteString("\n\nProduct 1: ")
	sb.WriteString(a.Name)
	if brand := a.BrandOrEmpty(); brand != "" {
		sb.WriteString(" (brand: " + brand + ")")
	}
	sb.WriteString("\nProduct 2: ")
	sb.WriteString(b.Name)
	if brand := b.BrandOrEmpty(); brand != "" {
		sb.WriteString(" (brand: " + brand + ")")
	}
	sb.WriteString("\n\nAnswer with JSON only: {\"is_core_product_match\": true|false, \"match_reason\": \"short explanation\"}")
	return sb.String()
}

// batchPrompt builds the batched arbitration prompt over retailer-tagged lists.
func batchPrompt(records []*models.RawRecord) string {
	byRetailer := make(map[int64][]*models.RawRecord)
	order := make([]int64, 0)
	for _, r := range records {
		if _, seen := byRetailer[r.RetailerID]; !seen {
			order = append(order, r.RetailerID)
		}
		byRetailer[r.RetailerID] = append(byRetailer[r.RetailerID], r)
	}

	var sb strings.Builder
	sb.WriteString("You receive product listings from multiple retailers. Group the ids that describe the exact same core product.\n\n")
	sb.WriteString(matchingRules)
	sb.WriteString("\n")
	for _, retailerID := range order {
		fmt.Fprintf(&sb, "\nRetailer %d:\n", retailerID)
		for _, r := range byRetailer[retailerID] {
			fmt.Fprintf(&sb, "  [%d] %s", r.ID, r.Name)
			if brand := r.BrandOrEmpty(); brand != "" {
				fmt.Fprintf(&sb, " (brand: %s)", brand)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nAnswer with JSON only: {\"matches\": [{\"product_ids\": [id, id], \"canonical_name\": \"...\", \"confidence\": \"HIGH|MEDIUM|LOW\"}], \"unmatched\": [id, ...]}\n")
	sb.WriteString("Only group ids you are confident about; put everything else in unmatched.")
	return sb.String()
}

// canonicalPrompt asks for the single best representative name.
func canonicalPrompt(names []string) string {
	var sb strings.Builder
	sb.WriteString("The following product names all describe the same physical product. ")
	sb.WriteString("Choose the single most complete, least ambiguous, retailer-neutral name.\n")
	sb.WriteString("You MUST answer with one name copied exactly from the list, character for character.\n\nCandidates:\n")
	for i, name := range names {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, name)
	}
	sb.WriteString("\nAnswer with JSON only: {\"canonical_name\": \"exact name from the list\", \"reason\": \"short explanation\"}")
	return sb.String()
}
