package models

import "time"

// DuplicateGroup is a maximal connected component under the MATCH-edge
// graph. Singleton groups are valid and canonical by construction.
type DuplicateGroup struct {
	GroupID   string    `json:"group_id" db:"group_id"`
	MemberIDs []int64   `json:"member_ids" db:"-"`
	RunID     string    `json:"run_id" db:"run_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CanonicalChoice names the representative listing for a group. The
// canonical record id must be a member of the group.
type CanonicalChoice struct {
	GroupID           string `json:"group_id" db:"group_id"`
	CanonicalRecordID int64  `json:"canonical_record_id" db:"canonical_record_id"`
	CanonicalName     string `json:"canonical_name" db:"canonical_name"`
	Reason            string `json:"reason" db:"reason"`
}

// GroupResult is the per-group output handed to the product store.
type GroupResult struct {
	GroupID           string  `json:"group_id"`
	MemberIDs         []int64 `json:"member_ids"`
	CanonicalRecordID int64   `json:"canonical_record_id"`
	CanonicalName     string  `json:"canonical_name"`
	Reason            string  `json:"reason,omitempty"`
}

// Contains reports whether id is a member of the group.
func (g *DuplicateGroup) Contains(id int64) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
