package simcall

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerInsideWindow(t *testing.T) {
	w := &Window{}
	answered := 0
	sc := New(1, 2, KindRecv, RecvArgs{Mailbox: "box"}, w)
	sc.OnAnswer = func(*Simcall) { answered++ }

	w.Open()
	require.NoError(t, sc.Answer("msg", nil))
	w.Close()

	assert.Equal(t, Done, sc.Status())
	v, err := sc.Result()
	assert.Equal(t, "msg", v)
	assert.NoError(t, err)
	assert.Equal(t, 1, answered)
}

func TestAnswerOutsideWindowPanics(t *testing.T) {
	sc := New(1, 2, KindYield, nil, &Window{})
	defer func() {
		r := recover()
		var pe *ProtocolError
		require.True(t, errors.As(r.(error), &pe))
		assert.Equal(t, Pending, sc.Status())
	}()
	sc.Answer(nil, nil)
	t.Fatalf("answering outside of the maestro window should panic")
}

func TestDoubleAnswerPanics(t *testing.T) {
	w := &Window{}
	w.Open()
	sc := New(1, 2, KindYield, nil, w)
	require.NoError(t, sc.Answer(nil, nil))
	assert.Panics(t, func() { sc.Answer(nil, nil) })
}

func TestCanceledIsNeverAnswered(t *testing.T) {
	w := &Window{}
	w.Open()
	sc := New(1, 2, KindSleep, SleepArgs{Duration: 1}, w)
	sc.OnAnswer = func(*Simcall) { t.Fatalf("a canceled simcall must not be answered") }
	sc.Block()
	assert.Equal(t, Blocked, sc.Status())
	assert.True(t, sc.Cancel())
	assert.False(t, sc.Cancel())

	assert.ErrorIs(t, sc.Answer("late", nil), ErrCanceled)
	v, err := sc.Result()
	assert.Nil(t, v)
	assert.NoError(t, err)
	assert.Equal(t, Canceled, sc.Status())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		args any
		ok   bool
	}{
		{"send", KindSend, SendArgs{Mailbox: "a", Payload: 1}, true},
		{"send without mailbox", KindSend, SendArgs{}, false},
		{"send with wrong args", KindSend, RecvArgs{Mailbox: "a"}, false},
		{"recv", KindRecv, RecvArgs{Mailbox: "a"}, true},
		{"execute", KindExecute, ExecArgs{Flops: 10}, true},
		{"negative execute", KindExecute, ExecArgs{Flops: -1}, false},
		{"sleep", KindSleep, SleepArgs{Duration: 0}, true},
		{"negative sleep", KindSleep, SleepArgs{Duration: -1}, false},
		{"NaN sleep", KindSleep, SleepArgs{Duration: math.NaN()}, false},
		{"infinite sleep", KindSleep, SleepArgs{Duration: math.Inf(1)}, false},
		{"NaN execute", KindExecute, ExecArgs{Flops: math.NaN()}, false},
		{"yield", KindYield, nil, true},
		{"yield with args", KindYield, 3, false},
		{"random", KindRandom, RandomArgs{Min: 1, Max: 1}, true},
		{"empty random", KindRandom, RandomArgs{Min: 2, Max: 1}, false},
		{"widest random", KindRandom, RandomArgs{Min: math.MinInt, Max: math.MaxInt}, false},
		{"random with too many choices", KindRandom, RandomArgs{Min: 0, Max: math.MaxInt}, false},
		{"large random", KindRandom, RandomArgs{Min: 1, Max: math.MaxInt}, true},
		{"run kernel", KindRunKernel, RunKernelArgs{Fn: func() {}}, true},
		{"run kernel without function", KindRunKernel, RunKernelArgs{}, false},
		{"run blocking", KindRunBlocking, RunBlockingArgs{Fn: func(Completion) {}}, true},
		{"kill", KindKill, TargetArgs{Target: 1}, true},
		{"kill nobody", KindKill, TargetArgs{}, false},
		{"rpc", KindRPC, RPCArgs{Target: "server", Method: "/Echo"}, true},
		{"unknown kind", Kind(99), nil, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Validate(test.kind, test.args)
			if test.ok {
				assert.NoError(t, err)
				return
			}
			var pe *ProtocolError
			assert.True(t, errors.As(err, &pe), "expected a ProtocolError, got %v", err)
		})
	}
}

func TestDependency(t *testing.T) {
	w := &Window{}
	sendA := StepOf(New(1, 1, KindSend, SendArgs{Mailbox: "a"}, w))
	sendB := StepOf(New(2, 2, KindSend, SendArgs{Mailbox: "b"}, w))
	recvA := StepOf(New(3, 3, KindRecv, RecvArgs{Mailbox: "a"}, w))
	exec := StepOf(New(4, 4, KindExecute, ExecArgs{Flops: 1}, w))
	kill := StepOf(New(5, 5, KindKill, TargetArgs{Target: 1}, w))
	start := StepOf(nil)

	assert.False(t, sendA.DependentWith(sendB))
	assert.True(t, sendA.DependentWith(recvA))
	assert.True(t, recvA.DependentWith(sendA))
	assert.False(t, exec.DependentWith(sendA))
	assert.False(t, start.DependentWith(recvA))
	assert.True(t, kill.DependentWith(exec))
	assert.True(t, exec.DependentWith(kill))

	random := StepOf(New(6, 6, KindRandom, RandomArgs{Min: 0, Max: 2}, w))
	assert.Equal(t, 3, random.Choices)
	assert.Equal(t, 1, sendA.Choices)
}
