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

type testDependency struct {
	name      string
	dependsOn []string
	startErrs int
	started   *[]string
	stopped   *[]string
}

func (d *testDependency) GetName() string     { return d.name }
func (d *testDependency) DependsOn() []string { return d.dependsOn }

func (d *testDependency) Start(_ context.Context) error {
	if d.startErrs > 0 {
		d.startErrs--
		return errors.New(d.name + " not ready")
	}
	*d.started = append(*d.started, d.name)
	return nil
}

func (d *testDependency) Stop(_ context.Context) error {
	*d.stopped = append(*d.stopped, d.name)
	return nil
}

func TestStartHonorsDependencyOrder(t *testing.T) {
	var started, stopped []string
	s := NewStartup(testLogger(), 1)

	// Registered out of order; DependsOn must still start database first.
	s.AddDependency(&testDependency{name: "http", dependsOn: []string{"database"}, started: &started, stopped: &stopped})
	s.AddDependency(&testDependency{name: "database", started: &started, stopped: &stopped})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "http"}, started)
}

func TestStopReversesRegistrationOrder(t *testing.T) {
	var started, stopped []string
	s := NewStartup(testLogger(), 1)

	s.AddDependency(&testDependency{name: "database", started: &started, stopped: &stopped})
	s.AddDependency(&testDependency{name: "http", dependsOn: []string{"database"}, started: &started, stopped: &stopped})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"http", "database"}, stopped)
}

func TestStartRetriesFlakyDependency(t *testing.T) {
	var started, stopped []string
	s := NewStartup(testLogger(), 3)

	s.AddDependency(&testDependency{name: "database", startErrs: 1, started: &started, stopped: &stopped})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database"}, started)
}

func TestStartFailsAfterMaxAttempts(t *testing.T) {
	var started, stopped []string
	s := NewStartup(testLogger(), 2)

	s.AddDependency(&testDependency{name: "database", startErrs: 5, started: &started, stopped: &stopped})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestStartSkipsAlreadyStartedDependencies(t *testing.T) {
	var started, stopped []string
	s := NewStartup(testLogger(), 3)

	// database succeeds on the first attempt, http needs a retry; database
	// must not start twice.
	s.AddDependency(&testDependency{name: "database", started: &started, stopped: &stopped})
	s.AddDependency(&testDependency{name: "http", dependsOn: []string{"database"}, startErrs: 1, started: &started, stopped: &stopped})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "http"}, started)
}
