// Package cluster computes duplicate groups from MATCH edges
package cluster

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Graph holds records in an arena indexed by dense handles, with an
// adjacency list keyed by handle. Traversal order never depends on the
// arbitrary record ids.
type Graph struct {
	ids      []int64       // handle -> record id
	handles  map[int64]int // record id -> handle
	adjacent [][]int       // handle -> neighbor handles
}

// NewGraph creates a graph over the given record ids. Every id forms
// its own singleton component until edges are added.
func NewGraph(recordIDs []int64) *Graph {
	sorted := make([]int64, len(recordIDs))
	copy(sorted, recordIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	g := &Graph{
		ids:      make([]int64, 0, len(sorted)),
		handles:  make(map[int64]int, len(sorted)),
		adjacent: make([][]int, 0, len(sorted)),
	}
	for _, id := range sorted {
		if _, dup := g.handles[id]; dup {
			continue
		}
		g.handles[id] = len(g.ids)
		g.ids = append(g.ids, id)
		g.adjacent = append(g.adjacent, nil)
	}
	return g
}

// AddEdge links two record ids. Ids unseen at construction are added.
// Edges are a set: adding the same edge twice does not change components.
func (g *Graph) AddEdge(a, b int64) {
	ha := g.handleFor(a)
	hb := g.handleFor(b)
	if ha == hb {
		return
	}
	g.adjacent[ha] = append(g.adjacent[ha], hb)
	g.adjacent[hb] = append(g.adjacent[hb], ha)
}

func (g *Graph) handleFor(id int64) int {
	if h, ok := g.handles[id]; ok {
		return h
	}
	h := len(g.ids)
	g.handles[id] = h
	g.ids = append(g.ids, id)
	g.adjacent = append(g.adjacent, nil)
	return h
}

// AddMatchVerdicts adds one edge for every MATCH verdict. Keys that do
// not parse as pair keys are skipped.
func (g *Graph) AddMatchVerdicts(verdicts map[string]models.Verdict) {
	for key, v := range verdicts {
		if !v.IsMatch() {
			continue
		}
		a, b, ok := models.ParsePairKey(key)
		if !ok {
			continue
		}
		g.AddEdge(a, b)
	}
}

// Components computes connected components by breadth-first traversal.
// Members are sorted ascending inside each group and groups are ordered
// by their smallest member, so a fixed verdict set always reproduces
// identical output.
func (g *Graph) Components(runID string) []models.DuplicateGroup {
	visited := make([]bool, len(g.ids))
	groups := make([]models.DuplicateGroup, 0)

	for start := 0; start < len(g.ids); start++ {
		if visited[start] {
			continue
		}
		visited[start] = true

		members := []int64{g.ids[start]}
		queue := []int{start}
		for len(queue) > 0 {
			h := queue[0]
			queue = queue[1:]
			for _, n := range g.adjacent[h] {
				if visited[n] {
					continue
				}
				visited[n] = true
				members = append(members, g.ids[n])
				queue = append(queue, n)
			}
		}

		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		groups = append(groups, models.DuplicateGroup{
			GroupID:   deterministicGroupID(runID, members[0]),
			MemberIDs: members,
			RunID:     runID,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].MemberIDs[0] < groups[j].MemberIDs[0] })
	return groups
}

// deterministicGroupID derives a stable uuid from the run id and the
// group's smallest member, so recomputation yields identical ids.
func deterministicGroupID(runID string, smallestMember int64) string {
	ns := uuid.NameSpaceOID
	if parsed, err := uuid.Parse(runID); err == nil {
		ns = parsed
	}
	return uuid.NewSHA1(ns, []byte(strconv.FormatInt(smallestMember, 10))).String()
}
