package resource

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionAndTimers(t *testing.T) {
	m := NewModel(nil)
	require.NoError(t, m.AddHost("fast", 100))
	require.NoError(t, m.AddHost("slow", 10))
	assert.Error(t, m.AddHost("fast", 1))
	assert.Error(t, m.AddHost("broken", 0))
	assert.Equal(t, []string{"fast", "slow"}, m.Hosts())

	order := []string{}
	record := func(name string) func(error) {
		return func(err error) {
			assert.NoError(t, err)
			order = append(order, name)
		}
	}
	_, err := m.StartExecution("slow", 100, record("slow"))
	require.NoError(t, err)
	_, err = m.StartExecution("fast", 100, record("fast"))
	require.NoError(t, err)
	_, err = m.StartTimer("", 1, record("timer"))
	require.NoError(t, err)

	// fast and timer both finish at time 1 and complete in the order they were started
	require.True(t, m.Advance())
	assert.Equal(t, 1.0, m.Now())
	assert.Equal(t, []string{"fast", "timer"}, order)

	require.True(t, m.Advance())
	assert.Equal(t, 10.0, m.Now())
	assert.Equal(t, []string{"fast", "timer", "slow"}, order)

	assert.False(t, m.Pending())
	assert.False(t, m.Advance())
}

func TestCancel(t *testing.T) {
	m := NewModel(nil)
	a, err := m.StartTimer("", 5, func(error) { t.Fatalf("a canceled activity must not complete") })
	require.NoError(t, err)
	assert.True(t, m.Pending())
	m.Cancel(a)
	assert.False(t, m.Pending())
	assert.False(t, m.Advance())
}

func TestExternalEvents(t *testing.T) {
	m := NewModel(nil)
	fired := []float64{}
	m.At(3, func() { fired = append(fired, m.Now()) })
	m.At(2, func() { fired = append(fired, m.Now()) })
	for m.Advance() {
	}
	assert.Equal(t, []float64{2, 3}, fired)

	// Events in the past fire at the current time
	m.At(1, func() { fired = append(fired, m.Now()) })
	m.Advance()
	assert.Equal(t, []float64{2, 3, 3}, fired)
}

func TestTurnOff(t *testing.T) {
	m := NewModel(nil)
	require.NoError(t, m.AddHost("node", 1))
	var got error
	_, err := m.StartExecution("node", 10, func(err error) { got = err })
	require.NoError(t, err)

	off := []string{}
	m.OnHostOff(func(host string) { off = append(off, host) })
	require.NoError(t, m.TurnOff("node"))

	var failure *Failure
	require.True(t, errors.As(got, &failure))
	assert.Equal(t, "node", failure.Host)
	assert.Equal(t, Execution, failure.Activity)
	assert.Equal(t, []string{"node"}, off)
	assert.False(t, m.Pending())

	_, err = m.StartExecution("node", 1, func(error) {})
	assert.True(t, errors.As(err, &failure))

	require.NoError(t, m.TurnOn("node"))
	_, err = m.StartExecution("node", 1, func(error) {})
	assert.NoError(t, err)
	assert.Error(t, m.TurnOff("missing"))
}

func TestInvalidDurations(t *testing.T) {
	m := NewModel(nil)
	require.NoError(t, m.AddHost("h", 1))
	_, err := m.StartTimer("", math.NaN(), func(error) {})
	assert.Error(t, err)
	_, err = m.StartTimer("h", math.Inf(1), func(error) {})
	assert.Error(t, err)
	_, err = m.StartExecution("h", math.NaN(), func(error) {})
	assert.Error(t, err)
	assert.False(t, m.Pending())

	// An external event at a time that is not a number fires at the next advance
	fired := false
	m.At(math.NaN(), func() { fired = true })
	require.True(t, m.Advance())
	assert.True(t, fired)
	assert.Equal(t, 0.0, m.Now())
	assert.False(t, m.Advance())
}
