// Package canonical picks the representative listing for each group
package canonical

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Oracle is the name-selection surface the selector needs.
type Oracle interface {
	PickCanonical(ctx context.Context, names []string) (string, error)
}

// Selector chooses canonical names for duplicate groups.
type Selector struct {
	oracle Oracle
	logger ectologger.Logger
}

// New creates a selector
func New(oracle Oracle, logger ectologger.Logger) *Selector {
	return &Selector{
		oracle: oracle,
		logger: logger,
	}
}

// Select returns the canonical choice for a group. Singleton groups are
// canonical by definition; multi-member groups go to the oracle with
// the exact candidate list, falling back deterministically to the first
// member when the response is invalid or exhausted.
func (s *Selector) Select(ctx context.Context, group models.DuplicateGroup, records map[int64]*models.RawRecord) models.CanonicalChoice {
	ctx, span := tracing.StartSpan(ctx, "canonical.Selector.Select")
	defer span.End()

	members := make([]*models.RawRecord, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		if r, ok := records[id]; ok {
			members = append(members, r)
		}
	}
	if len(members) == 0 {
		// Group members missing from the record set; keep the output
		// well formed with the smallest member id.
		return models.CanonicalChoice{
			GroupID:           group.GroupID,
			CanonicalRecordID: group.MemberIDs[0],
			CanonicalName:     "",
			Reason:            "fallback: no records available for group members",
		}
	}

	if len(members) == 1 {
		return models.CanonicalChoice{
			GroupID:           group.GroupID,
			CanonicalRecordID: members[0].ID,
			CanonicalName:     members[0].Name,
			Reason:            "single item, automatically canonical",
		}
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}

	chosen, err := s.oracle.PickCanonical(ctx, names)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": group.GroupID,
		}).Warn("Canonical selection failed, falling back to first member")
		return s.fallback(group, members, fmt.Sprintf("fallback: oracle error: %v", err))
	}

	for _, m := range members {
		if m.Name == chosen {
			return models.CanonicalChoice{
				GroupID:           group.GroupID,
				CanonicalRecordID: m.ID,
				CanonicalName:     m.Name,
				Reason:            "selected by oracle",
			}
		}
	}

	// The chosen name is not in the candidate list.
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id": group.GroupID,
		"chosen":   chosen,
	}).Warn("Oracle chose a name outside the candidate list")
	return s.fallback(group, members, "fallback: oracle response not in candidate list")
}

func (s *Selector) fallback(group models.DuplicateGroup, members []*models.RawRecord, reason string) models.CanonicalChoice {
	return models.CanonicalChoice{
		GroupID:           group.GroupID,
		CanonicalRecordID: members[0].ID,
		CanonicalName:     members[0].Name,
		Reason:            reason,
	}
}
