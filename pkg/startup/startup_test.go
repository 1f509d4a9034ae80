package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeDep records start/stop calls and fails its first N starts.
type fakeDep struct {
	name     string
	failures int
	log      *[]string
}

func (d *fakeDep) Name() string { return d.name }

func (d *fakeDep) Start(_ context.Context) error {
	*d.log = append(*d.log, "start "+d.name)
	if d.failures > 0 {
		d.failures--
		return errors.New("not ready")
	}
	return nil
}

func (d *fakeDep) Stop(_ context.Context) error {
	*d.log = append(*d.log, "stop "+d.name)
	return nil
}

func TestStartsInOrderAndStopsInReverse(t *testing.T) {
	var log []string
	seq := New(testLogger(), 1)
	seq.Add(&fakeDep{name: "database", log: &log})
	seq.Add(&fakeDep{name: "migrations", log: &log})
	seq.Add(&fakeDep{name: "graph", log: &log})

	require.NoError(t, seq.Start(context.Background()))
	require.NoError(t, seq.Stop(context.Background()))

	assert.Equal(t, []string{
		"start database", "start migrations", "start graph",
		"stop graph", "stop migrations", "stop database",
	}, log)
}

func TestFailedStartStopsOnlyStartedDependencies(t *testing.T) {
	var log []string
	seq := New(testLogger(), 1)
	seq.Add(&fakeDep{name: "database", log: &log})
	seq.Add(&fakeDep{name: "migrations", failures: 1, log: &log})

	require.Error(t, seq.Start(context.Background()))
	require.NoError(t, seq.Stop(context.Background()))

	assert.Equal(t, []string{"start database", "start migrations", "stop database"}, log)
}

func TestRetryDoesNotRestartHealthyDependencies(t *testing.T) {
	var log []string
	seq := New(testLogger(), 2)
	seq.Add(&fakeDep{name: "database", log: &log})
	seq.Add(&fakeDep{name: "migrations", failures: 1, log: &log})

	require.NoError(t, seq.Start(context.Background()))

	assert.Equal(t, []string{"start database", "start migrations", "start migrations"}, log)
}
