package runner

import (
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simkernel/guide"
	"simkernel/kernel"
	"simkernel/resource"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func clientServer(k *kernel.Kernel) error {
	if _, err := k.Spawn("server", "", func(a *kernel.Actor) {
		last := 0
		for i := 0; i < 3; i++ {
			last = a.Recv("server").(int)
		}
		a.Assertf(last == 3, "the last message came from client %v", last)
	}); err != nil {
		return err
	}
	for i := 1; i <= 3; i++ {
		if _, err := k.Spawn("client", "", func(a *kernel.Actor) { a.Send("server", i) }); err != nil {
			return err
		}
	}
	return nil
}

// Collects the records of r until the runner is stopped
func collect(r *Runner) <-chan []Record {
	out := make(chan []Record, 1)
	records := r.Subscribe()
	go func() {
		all := []Record{}
		for rec := range records {
			all = append(all, rec)
		}
		out <- all
	}()
	return out
}

func TestStepThroughRun(t *testing.T) {
	r := NewRunner(100, nil)
	require.NoError(t, r.Start(kernel.Options{}, clientServer, guide.NewBasic(), 0))
	records := collect(r)

	_, done, err := r.Step(4)
	require.NoError(t, err)
	assert.False(t, done)

	res, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, kernel.Completed, res.Outcome)
	assert.Equal(t, "1;2;3;4;2;1;3;4;1;1", res.Trace.String())

	_, _, err = r.Step(1)
	assert.ErrorIs(t, err, ErrRunEnded)

	stopped, done, err := r.Stop()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, res.Trace, stopped.Trace)

	_, _, err = r.Stop()
	assert.ErrorIs(t, err, ErrStopped)

	all := <-records
	transitions := []string{}
	answered := 0
	for _, rec := range all {
		switch rt := rec.(type) {
		case TransitionRecord:
			transitions = append(transitions, rt.Transition.String())
		case SimcallRecord:
			answered++
		}
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "2", "1", "3", "4", "1", "1"}, transitions)
	assert.Equal(t, 6, answered)
	require.NotEmpty(t, all)
	last, ok := all[len(all)-1].(OutcomeRecord)
	require.True(t, ok, "the outcome is the last record, got %v", all[len(all)-1])
	assert.Equal(t, kernel.Completed, last.Result.Outcome)

	// Subscribing after the runner has stopped returns a closed channel
	_, open := <-r.Subscribe()
	assert.False(t, open)
}

func TestDeliver(t *testing.T) {
	var got any
	r := NewRunner(100, nil)
	require.NoError(t, r.Start(kernel.Options{}, func(k *kernel.Kernel) error {
		_, err := k.Spawn("listener", "", func(a *kernel.Actor) {
			got = a.Recv("inbox")
		})
		return err
	}, guide.NewBasic(), 0))

	// The listener waits for a message
	_, done, err := r.Step(1)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, r.Deliver("inbox", 42))
	res, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, kernel.Completed, res.Outcome)
	assert.Equal(t, 42, got)
	_, _, err = r.Stop()
	assert.NoError(t, err)
}

func TestKillAndCrash(t *testing.T) {
	var failure error
	r := NewRunner(100, nil)
	require.NoError(t, r.Start(kernel.Options{}, func(k *kernel.Kernel) error {
		if err := k.AddHost("a", 1); err != nil {
			return err
		}
		if err := k.AddHost("b", 1); err != nil {
			return err
		}
		if _, err := k.Spawn("spinner", "a", func(a *kernel.Actor) {
			for {
				a.Yield()
			}
		}); err != nil {
			return err
		}
		_, err := k.Spawn("worker", "a", func(a *kernel.Actor) {
			failure = a.ExecuteOn("b", 100)
		})
		return err
	}, guide.NewBasic(), 0))
	records := collect(r)

	_, _, err := r.Step(4)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Kill(7), kernel.ErrNoSuchActor)
	require.NoError(t, r.Kill(1))
	assert.Error(t, r.CrashHost("c"))
	require.NoError(t, r.CrashHost("b"))

	res, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, kernel.Completed, res.Outcome)
	var rf *resource.Failure
	assert.True(t, errors.As(failure, &rf), "expected a resource failure, got %v", failure)

	_, _, err = r.Stop()
	require.NoError(t, err)
	canceled := 0
	for _, rec := range <-records {
		if sr, ok := rec.(SimcallRecord); ok && sr.Canceled {
			assert.Equal(t, 1, sr.Target())
			canceled++
		}
	}
	assert.Equal(t, 1, canceled)
}

func TestStopBeforeTheEnd(t *testing.T) {
	r := NewRunner(10, nil)
	_, err := r.Run()
	assert.Error(t, err)

	require.NoError(t, r.Start(kernel.Options{}, clientServer, guide.NewBasic(), 0))
	assert.ErrorIs(t, r.Start(kernel.Options{}, clientServer, guide.NewBasic(), 0), ErrStarted)
	_, done, err := r.Step(2)
	require.NoError(t, err)
	require.False(t, done)

	_, done, err = r.Stop()
	require.NoError(t, err)
	assert.False(t, done)
}

func TestDeployError(t *testing.T) {
	r := NewRunner(10, nil)
	err := r.Start(kernel.Options{}, func(k *kernel.Kernel) error {
		_, err := k.Spawn("lost", "nowhere", func(*kernel.Actor) {})
		return err
	}, guide.NewBasic(), 0)
	assert.ErrorIs(t, err, kernel.ErrNoSuchHost)
}
