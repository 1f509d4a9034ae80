package canonical

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type stubOracle struct {
	name  string
	err   error
	calls int
}

func (s *stubOracle) PickCanonical(_ context.Context, _ []string) (string, error) {
	s.calls++
	return s.name, s.err
}

func group(ids ...int64) models.DuplicateGroup {
	return models.DuplicateGroup{GroupID: "g-1", MemberIDs: ids}
}

func records(pairs map[int64]string) map[int64]*models.RawRecord {
	out := make(map[int64]*models.RawRecord, len(pairs))
	for id, name := range pairs {
		out[id] = &models.RawRecord{ID: id, Name: name, RetailerID: 1}
	}
	return out
}

func TestSingletonIsCanonicalWithoutOracle(t *testing.T) {
	oracle := &stubOracle{}
	s := New(oracle, testLogger())

	choice := s.Select(context.Background(), group(7), records(map[int64]string{7: "Olive Oil 750ml"}))

	assert.Equal(t, int64(7), choice.CanonicalRecordID)
	assert.Equal(t, "Olive Oil 750ml", choice.CanonicalName)
	assert.Equal(t, "single item, automatically canonical", choice.Reason)
	assert.Equal(t, 0, oracle.calls)
}

func TestOracleChoiceFromCandidateList(t *testing.T) {
	oracle := &stubOracle{name: "Shampoo X 400ml"}
	s := New(oracle, testLogger())

	choice := s.Select(context.Background(), group(1, 2), records(map[int64]string{
		1: "Shampoo X",
		2: "Shampoo X 400ml",
	}))

	assert.Equal(t, int64(2), choice.CanonicalRecordID)
	assert.Equal(t, "Shampoo X 400ml", choice.CanonicalName)
}

func TestChoiceOutsideCandidateListFallsBack(t *testing.T) {
	oracle := &stubOracle{name: "Totally Invented Name"}
	s := New(oracle, testLogger())

	choice := s.Select(context.Background(), group(1, 2), records(map[int64]string{
		1: "Shampoo X",
		2: "Shampoo X 400ml",
	}))

	assert.Equal(t, int64(1), choice.CanonicalRecordID)
	assert.Equal(t, "Shampoo X", choice.CanonicalName)
	assert.Contains(t, choice.Reason, "fallback")
}

func TestOracleErrorFallsBackToFirstMember(t *testing.T) {
	oracle := &stubOracle{err: errors.New("service unavailable")}
	s := New(oracle, testLogger())

	choice := s.Select(context.Background(), group(3, 4), records(map[int64]string{
		3: "First Name",
		4: "Second Name",
	}))

	assert.Equal(t, int64(3), choice.CanonicalRecordID)
	assert.Contains(t, choice.Reason, "fallback")
}

func TestCanonicalIDIsAlwaysGroupMember(t *testing.T) {
	oracle := &stubOracle{name: "Shampoo X 400ml"}
	s := New(oracle, testLogger())
	g := group(1, 2)

	choice := s.Select(context.Background(), g, records(map[int64]string{
		1: "Shampoo X",
		2: "Shampoo X 400ml",
	}))

	assert.True(t, g.Contains(choice.CanonicalRecordID))
}
