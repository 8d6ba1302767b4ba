// Package trace records the order in which transitions were executed.
//
// A trace is the sequence of (actor, choice) pairs chosen during a run. Replaying
// it against the same program reproduces the run exactly.
package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// One scheduling decision: which actor ran, and which outcome of a random simcall was picked.
type Transition struct {
	Actor  int `json:"actor"`
	Choice int `json:"choice"`
}

func (t Transition) String() string {
	if t.Choice == 0 {
		return strconv.Itoa(t.Actor)
	}
	return fmt.Sprintf("%d/%d", t.Actor, t.Choice)
}

type Trace []Transition

// String returns the text representation of the trace, e.g. "1;2/1;3".
// Choices equal to zero are omitted.
func (t Trace) String() string {
	parts := make([]string, len(t))
	for i, tr := range t {
		parts[i] = tr.String()
	}
	return strings.Join(parts, ";")
}

// Copy returns a trace that does not share memory with t
func (t Trace) Copy() Trace {
	out := make(Trace, len(t))
	copy(out, t)
	return out
}

// HasPrefix reports whether prefix is a prefix of t
func (t Trace) HasPrefix(prefix Trace) bool {
	if len(prefix) > len(t) {
		return false
	}
	for i := range prefix {
		if t[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Parse reads the text representation of a trace
func Parse(s string) (Trace, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Trace{}, nil
	}
	parts := strings.Split(s, ";")
	out := make(Trace, 0, len(parts))
	for i, part := range parts {
		actorStr, choiceStr, hasChoice := strings.Cut(strings.TrimSpace(part), "/")
		actor, err := strconv.Atoi(actorStr)
		if err != nil || actor <= 0 {
			return nil, fmt.Errorf("trace: invalid actor %q in transition %d", actorStr, i)
		}
		choice := 0
		if hasChoice {
			choice, err = strconv.Atoi(choiceStr)
			if err != nil || choice < 0 {
				return nil, fmt.Errorf("trace: invalid choice %q in transition %d", choiceStr, i)
			}
		}
		out = append(out, Transition{Actor: actor, Choice: choice})
	}
	return out, nil
}
