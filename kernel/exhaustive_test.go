package kernel

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simkernel/guide"
	"simkernel/simcall"
	"simkernel/trace"
)

// Explores every interleaving and every random choice without any reduction
type exhaustive struct {
	work []trace.Trace
}

func newExhaustive() *exhaustive {
	e := &exhaustive{}
	e.Reset()
	return e
}

func (e *exhaustive) GetRunGuide() guide.RunGuide { return &runExhaustive{e: e} }
func (e *exhaustive) Reset()                      { e.work = []trace.Trace{{}} }

type runExhaustive struct {
	e *exhaustive
	// The transitions of the run, extended by the first alternative whenever a new state is reached
	path  trace.Trace
	taken int
}

func (re *runExhaustive) StartRun() error {
	if len(re.e.work) == 0 {
		return guide.NoRunsError
	}
	re.path = re.e.work[len(re.e.work)-1]
	re.e.work = re.e.work[:len(re.e.work)-1]
	re.taken = 0
	return nil
}

func (re *runExhaustive) EndRun() {}

func (re *runExhaustive) NextTransition(ready []guide.ReadyActor) (trace.Transition, error) {
	if len(ready) == 0 {
		return trace.Transition{}, guide.ErrNoReady
	}
	if re.taken < len(re.path) {
		return re.path[re.taken], nil
	}
	alternatives := []trace.Transition{}
	for _, r := range ready {
		for c := 0; c < max(r.Step.Choices, 1); c++ {
			alternatives = append(alternatives, trace.Transition{Actor: r.ID, Choice: c})
		}
	}
	for _, alt := range alternatives[1:] {
		prefix := append(trace.Trace{}, re.path...)
		re.e.work = append(re.e.work, append(prefix, alt))
	}
	re.path = append(re.path, alternatives[0])
	return alternatives[0], nil
}

func (re *runExhaustive) ExecuteNext(t trace.Transition, exec guide.Executor) error {
	if err := exec.Execute(t); err != nil {
		return err
	}
	re.taken++
	return nil
}

// A program that reports what its actors observed in the run
type observedProgram func(k *Kernel, observe func(string))

// Returns the distinct outcomes of the runs offered by g, along with the number of runs.
// An outcome is the outcome of the run followed by the sorted observations.
func outcomes(t *testing.T, g guide.Global, program observedProgram) (map[string]bool, int) {
	t.Helper()
	rg := g.GetRunGuide()
	out := map[string]bool{}
	for runs := 0; runs < 50000; runs++ {
		if err := rg.StartRun(); err != nil {
			require.ErrorIs(t, err, guide.NoRunsError)
			return out, runs
		}
		seen := []string{}
		k := newKernel(t, Options{})
		program(k, func(s string) { seen = append(seen, s) })
		res := k.Run(rg, 0)
		rg.EndRun()
		require.NotEqual(t, Fatal, res.Outcome, "%v", res.Err)
		if res.Outcome == Pruned {
			continue
		}
		sort.Strings(seen)
		out[res.Outcome.String()+"|"+strings.Join(seen, ",")] = true
	}
	t.Fatal("exploration did not terminate")
	return nil, 0
}

func TestDPORMatchesExhaustiveSearch(t *testing.T) {
	tests := []struct {
		name    string
		program observedProgram
	}{
		{"kill before send", func(k *Kernel, observe func(string)) {
			var victim *Actor
			k.Spawn("killer", "", func(a *Actor) {
				a.Kill(victim.ID())
				a.Send("m", "killer")
			})
			victim, _ = k.Spawn("victim", "", func(a *Actor) {
				a.Send("m", "victim")
			})
			k.Spawn("receiver", "", func(a *Actor) {
				observe(a.Recv("m").(string))
			})
		}},
		{"suspend before send", func(k *Kernel, observe func(string)) {
			var victim *Actor
			k.Spawn("suspender", "", func(a *Actor) {
				a.Suspend(victim.ID())
				a.Send("m", "suspender")
				a.Resume(victim.ID())
			})
			victim, _ = k.Spawn("victim", "", func(a *Actor) {
				a.Send("m", "victim")
			})
			k.Spawn("receiver", "", func(a *Actor) {
				observe(a.Recv("m").(string))
			})
		}},
		{"competing receivers", func(k *Kernel, observe func(string)) {
			for _, name := range []string{"r1", "r2"} {
				k.Spawn(name, "", func(a *Actor) {
					observe(fmt.Sprintf("%v=%v", name, a.Recv("m")))
				})
			}
			k.Spawn("producer", "", func(a *Actor) {
				a.Send("m", 1)
				a.Yield()
				a.Send("m", 2)
			})
		}},
		{"random and kill", func(k *Kernel, observe func(string)) {
			var victim *Actor
			k.Spawn("dice", "", func(a *Actor) {
				if a.Random(0, 1) == 1 {
					a.Kill(victim.ID())
				}
			})
			victim, _ = k.Spawn("victim", "", func(a *Actor) {
				a.Send("m", "alive")
			})
			k.Spawn("receiver", "", func(a *Actor) {
				observe(a.Recv("m").(string))
			})
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			all, exhaustiveRuns := outcomes(t, newExhaustive(), test.program)
			reduced, dporRuns := outcomes(t, guide.NewDPOR(), test.program)
			assert.Equal(t, all, reduced)
			assert.LessOrEqual(t, dporRuns, exhaustiveRuns)
		})
	}
}

func TestKillRaceIsExplored(t *testing.T) {
	program := func(k *Kernel, observe func(string)) {
		var victim *Actor
		k.Spawn("killer", "", func(a *Actor) {
			a.Kill(victim.ID())
			a.Send("m", "killer")
		})
		victim, _ = k.Spawn("victim", "", func(a *Actor) {
			a.Send("m", "victim")
		})
		k.Spawn("receiver", "", func(a *Actor) {
			observe(a.Recv("m").(string))
		})
	}
	found, _ := outcomes(t, guide.NewDPOR(), program)
	assert.True(t, found["completed|killer"])
	assert.True(t, found["completed|victim"])
}

func TestEveryReceiveOrderIsExplored(t *testing.T) {
	orders := map[string]bool{}
	results := explore(t, guide.NewDPOR(), func(k *Kernel) {
		k.Spawn("server", "", func(a *Actor) {
			order := ""
			for i := 0; i < 3; i++ {
				order += fmt.Sprint(a.Recv("server"))
			}
			orders[order] = true
		})
		for i := 1; i <= 3; i++ {
			k.Spawn("client", "", func(a *Actor) {
				a.Send("server", i)
			})
		}
	})
	assert.Equal(t, map[string]bool{"123": true, "132": true, "213": true, "231": true, "312": true, "321": true}, orders)
	assert.Equal(t, 0, count(results, Fatal))
}

func TestNonFiniteDurationsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a *Actor)
	}{
		{"sleep NaN", func(a *Actor) { a.Sleep(math.NaN()) }},
		{"sleep forever", func(a *Actor) { a.Sleep(math.Inf(1)) }},
		{"execute NaN", func(a *Actor) { a.Execute(math.NaN()) }},
		{"random overflow", func(a *Actor) { a.Random(math.MinInt, math.MaxInt) }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			k := newKernel(t, Options{})
			require.NoError(t, k.AddHost("h", 1))
			k.Spawn("broken", "h", test.fn)
			res := runBasic(t, k)
			require.Equal(t, Fatal, res.Outcome)
			var pe *simcall.ProtocolError
			assert.ErrorAs(t, res.Err, &pe)
		})
	}
}
