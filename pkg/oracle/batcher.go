package oracle

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// GroupForBatching splits records into oracle-sized batches. Records
// are grouped by brand first; oversized brand groups are subdivided by
// their leading name keyword so every comparable pair still co-occurs
// in at least one batch. Records without a brand are grouped by keyword
// directly.
func GroupForBatching(records []*models.RawRecord, maxBatch int) [][]*models.RawRecord {
	if maxBatch < 2 {
		maxBatch = 2
	}

	byKey := make(map[string][]*models.RawRecord)
	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.BrandOrEmpty()))
		if key == "" {
			key = "kw:" + leadingKeyword(r.Name)
		}
		byKey[key] = append(byKey[key], r)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batches := make([][]*models.RawRecord, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		if len(group) < 2 {
			continue
		}
		if len(group) <= maxBatch {
			batches = append(batches, group)
			continue
		}
		batches = append(batches, subdivideByKeyword(group, maxBatch)...)
	}
	return batches
}

// subdivideByKeyword splits an oversized group on the leading name
// keyword, chunking any subgroup that still exceeds the cap.
func subdivideByKeyword(group []*models.RawRecord, maxBatch int) [][]*models.RawRecord {
	byKeyword := make(map[string][]*models.RawRecord)
	for _, r := range group {
		byKeyword[leadingKeyword(r.Name)] = append(byKeyword[leadingKeyword(r.Name)], r)
	}

	keywords := make([]string, 0, len(byKeyword))
	for k := range byKeyword {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	batches := make([][]*models.RawRecord, 0, len(keywords))
	for _, kw := range keywords {
		sub := byKeyword[kw]
		if len(sub) < 2 {
			continue
		}
		for start := 0; start < len(sub); start += maxBatch {
			end := start + maxBatch
			if end > len(sub) {
				end = len(sub)
			}
			if end-start >= 2 {
				batches = append(batches, sub[start:end])
			}
		}
	}
	return batches
}

func leadingKeyword(name string) string {
	fields := strings.Fields(normalizers.NormalizeProductName(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
