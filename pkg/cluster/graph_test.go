package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

const runID = "9f4e1c1e-62a3-4a74-9f2a-000000000001"

func TestTransitiveClosure(t *testing.T) {
	// (1,2) and (2,3) matched; (1,3) never evaluated. All three land in
	// one group via graph components, not pairwise re-evaluation.
	g := NewGraph([]int64{1, 2, 3})
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)

	groups := g.Components(runID)

	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2, 3}, groups[0].MemberIDs)
}

func TestSingletonsFormOwnGroups(t *testing.T) {
	g := NewGraph([]int64{10, 20, 30})
	g.AddEdge(10, 20)

	groups := g.Components(runID)

	require.Len(t, groups, 2)
	assert.Equal(t, []int64{10, 20}, groups[0].MemberIDs)
	assert.Equal(t, []int64{30}, groups[1].MemberIDs)
}

func TestEveryIDAppearsInExactlyOneGroup(t *testing.T) {
	g := NewGraph([]int64{1, 2, 3, 4, 5})
	g.AddEdge(1, 2)
	g.AddEdge(4, 5)

	groups := g.Components(runID)

	seen := make(map[int64]int)
	for _, group := range groups {
		for _, id := range group.MemberIDs {
			seen[id]++
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "id %d", id)
	}
	assert.Len(t, seen, 5)
}

func TestIdempotentRecomputation(t *testing.T) {
	build := func() []models.DuplicateGroup {
		g := NewGraph([]int64{7, 3, 9, 1})
		g.AddMatchVerdicts(map[string]models.Verdict{
			"3-7": {PairKey: "3-7", Outcome: models.VerdictMatch},
			"1-9": {PairKey: "1-9", Outcome: models.VerdictNoMatch},
		})
		return g.Components(runID)
	}

	assert.Equal(t, build(), build())
}

func TestDuplicateEdgesDoNotChangeComponents(t *testing.T) {
	g := NewGraph([]int64{1, 2})
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.AddEdge(1, 2)

	groups := g.Components(runID)

	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2}, groups[0].MemberIDs)
}

func TestEdgeIntroducesUnseenID(t *testing.T) {
	g := NewGraph([]int64{1})
	g.AddEdge(1, 99)

	groups := g.Components(runID)

	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 99}, groups[0].MemberIDs)
}
