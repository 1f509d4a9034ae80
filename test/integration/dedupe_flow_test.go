package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/checkpoint"
	"github.com/Ramsey-B/clover/pkg/features"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/oracle"
	"github.com/Ramsey-B/clover/pkg/pipeline"
	"github.com/Ramsey-B/clover/pkg/rules"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func strPtr(s string) *string { return &s }

// scriptedChat answers pairwise prompts from a fixed name-pair table and
// canonical prompts with the longest candidate.
type scriptedChat struct {
	mu      sync.Mutex
	calls   int
	matches map[string]bool // "nameA|nameB" in either order
}

func (c *scriptedChat) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if strings.Contains(prompt, "Choose the single most complete") {
		best := ""
		for _, line := range strings.Split(prompt, "\n") {
			if idx := strings.Index(line, ". "); idx > 0 && idx <= 3 {
				name := line[idx+2:]
				if len(name) > len(best) {
					best = name
				}
			}
		}
		out, _ := json.Marshal(map[string]string{
			"canonical_name": best,
			"reason":         "most descriptive",
		})
		return string(out), nil
	}

	name1 := stripBrand(between(prompt, "Product 1: ", "\n"))
	name2 := stripBrand(between(prompt, "Product 2: ", "\n"))
	matched := c.matches[name1+"|"+name2] || c.matches[name2+"|"+name1]

	out, _ := json.Marshal(map[string]any{
		"is_core_product_match": matched,
		"match_reason":          "scripted",
	})
	return string(out), nil
}

func stripBrand(name string) string {
	if i := strings.Index(name, " (brand:"); i >= 0 {
		return name[:i]
	}
	return name
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return rest
	}
	return rest[:j]
}

func TestFullDedupeFlow(t *testing.T) {
	logger := testLogger()

	records := []*models.RawRecord{
		{ID: 1, Name: "שמפו הוואי 400 מל", Brand: strPtr("Hawaii"), RetailerID: 10},
		{ID: 2, Name: "הוואי שמפו 400ml", Brand: strPtr("Hawaii"), RetailerID: 20},
		{ID: 3, Name: "שמפו הוואי 700 מל", Brand: strPtr("Hawaii"), RetailerID: 20},
		{ID: 4, Name: "מרכך הוואי 400 מל", Brand: strPtr("Hawaii"), RetailerID: 10},
		{ID: 5, Name: "קפה נמס עלית 200 גרם", Brand: strPtr("Elite"), RetailerID: 10},
	}

	chat := &scriptedChat{matches: map[string]bool{
		"שמפו הוואי 400 מל|הוואי שמפו 400ml": true,
	}}

	arbiter := oracle.NewWithChat(chat, oracle.DefaultConfig(), logger)

	path := filepath.Join(t.TempDir(), "progress.json")
	store := checkpoint.New(path, 20, logger)

	pipe := pipeline.New(
		logger,
		features.New(features.DefaultConfig()),
		rules.New(rules.DefaultConfig()),
		arbiter,
		store,
		canonical.New(arbiter, logger),
		pipeline.DefaultConfig(),
	)

	result, err := pipe.Run(context.Background(), "run-1", records)
	require.NoError(t, err)

	// 1 and 2 group together; everything else stays a singleton.
	groupOf := make(map[int64]string)
	for _, g := range result.Outputs {
		for _, id := range g.MemberIDs {
			groupOf[id] = g.GroupID
		}
	}
	require.Len(t, groupOf, len(records))
	assert.Equal(t, groupOf[1], groupOf[2])
	assert.NotEqual(t, groupOf[1], groupOf[3])
	assert.NotEqual(t, groupOf[1], groupOf[4])
	assert.NotEqual(t, groupOf[1], groupOf[5])

	// Every group names a canonical that is one of its members.
	for _, g := range result.Outputs {
		found := false
		for _, id := range g.MemberIDs {
			if id == g.CanonicalRecordID {
				found = true
			}
		}
		assert.True(t, found, "canonical must be a member of group %s", g.GroupID)
		if len(g.MemberIDs) == 1 {
			assert.Equal(t, "single item, automatically canonical", g.Reason)
		}
	}

	// The checkpoint file landed on disk and is valid JSON.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cp models.Checkpoint
	require.NoError(t, json.Unmarshal(data, &cp))
	assert.NotEmpty(t, cp.Verdicts)

	// A second run over the same listings asks the oracle nothing new.
	chat.mu.Lock()
	callsAfterFirst := chat.calls
	chat.mu.Unlock()

	store2 := checkpoint.New(path, 20, logger)
	pipe2 := pipeline.New(
		logger,
		features.New(features.DefaultConfig()),
		rules.New(rules.DefaultConfig()),
		arbiter,
		store2,
		canonical.New(arbiter, logger),
		pipeline.DefaultConfig(),
	)

	result2, err := pipe2.Run(context.Background(), "run-1", records)
	require.NoError(t, err)
	assert.Equal(t, len(result.Outputs), len(result2.Outputs))

	chat.mu.Lock()
	pairCallsAfterSecond := chat.calls
	chat.mu.Unlock()
	// Canonical selection may still consult the oracle; pair arbitration must not.
	assert.LessOrEqual(t, pairCallsAfterSecond, callsAfterFirst+len(result2.Outputs))
}
