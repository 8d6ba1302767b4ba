package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary format:
//
//	message Trace { repeated Transition transitions = 1; }
//	message Transition { int64 actor = 1; int64 choice = 2; }
const (
	fieldTransitions protowire.Number = 1
	fieldActor       protowire.Number = 1
	fieldChoice      protowire.Number = 2
)

// WriteJSON writes the trace as JSON lines, one transition per line
func WriteJSON(w io.Writer, t Trace) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, tr := range t {
		if err := enc.Encode(tr); err != nil {
			return fmt.Errorf("trace: failed to encode transition: %w", err)
		}
	}
	return bw.Flush()
}

// ReadJSON reads a trace written by WriteJSON
func ReadJSON(r io.Reader) (Trace, error) {
	out := Trace{}
	dec := json.NewDecoder(bufio.NewReader(r))
	for dec.More() {
		var tr Transition
		if err := dec.Decode(&tr); err != nil {
			return nil, fmt.Errorf("trace: failed to decode transition: %w", err)
		}
		if tr.Actor <= 0 || tr.Choice < 0 {
			return nil, fmt.Errorf("trace: invalid transition %v/%v at line %d", tr.Actor, tr.Choice, len(out)+1)
		}
		out = append(out, tr)
	}
	return out, nil
}

// MarshalBinary encodes the trace in the protobuf wire format
func (t Trace) MarshalBinary() ([]byte, error) {
	var b []byte
	for _, tr := range t {
		var rec []byte
		rec = protowire.AppendTag(rec, fieldActor, protowire.VarintType)
		rec = protowire.AppendVarint(rec, uint64(tr.Actor))
		if tr.Choice != 0 {
			rec = protowire.AppendTag(rec, fieldChoice, protowire.VarintType)
			rec = protowire.AppendVarint(rec, uint64(tr.Choice))
		}
		b = protowire.AppendTag(b, fieldTransitions, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	return b, nil
}

// UnmarshalBinary decodes a trace encoded by MarshalBinary. Unknown fields are skipped.
func (t *Trace) UnmarshalBinary(b []byte) error {
	out := Trace{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("trace: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldTransitions || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("trace: malformed field %v: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		rec, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("trace: malformed transition: %w", protowire.ParseError(n))
		}
		b = b[n:]
		tr, err := unmarshalTransition(rec)
		if err != nil {
			return err
		}
		out = append(out, tr)
	}
	*t = out
	return nil
}

func unmarshalTransition(b []byte) (Transition, error) {
	tr := Transition{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return tr, fmt.Errorf("trace: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType || (num != fieldActor && num != fieldChoice) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return tr, fmt.Errorf("trace: malformed field %v: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return tr, fmt.Errorf("trace: malformed varint: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldActor {
			tr.Actor = int(v)
		} else {
			tr.Choice = int(v)
		}
	}
	if tr.Actor <= 0 {
		return tr, errors.New("trace: transition without actor")
	}
	return tr, nil
}

type format int

const (
	formatText format = iota
	formatJSON
	formatBinary
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		return formatJSON
	case ".pb", ".bin":
		return formatBinary
	}
	return formatText
}

// Save writes the trace to a file. The format is chosen from the extension:
// .json/.jsonl for JSON lines, .pb/.bin for the binary format, text otherwise.
func Save(path string, t Trace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: failed to create trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("trace: failed to close trace file: %w", cerr)
		}
	}()

	switch formatOf(path) {
	case formatJSON:
		return WriteJSON(f, t)
	case formatBinary:
		b, _ := t.MarshalBinary()
		_, err = f.Write(b)
	default:
		_, err = fmt.Fprintln(f, t.String())
	}
	if err != nil {
		return fmt.Errorf("trace: failed to write trace file: %w", err)
	}
	return nil
}

// Load reads a trace written by Save
func Load(path string) (Trace, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: failed to open trace file: %w", err)
	}
	switch formatOf(path) {
	case formatJSON:
		return ReadJSON(strings.NewReader(string(b)))
	case formatBinary:
		var t Trace
		err := t.UnmarshalBinary(b)
		return t, err
	}
	return Parse(string(b))
}
