package keys

import (
	"errors"
	"fmt"
)

// Edge is one key transition derived by the sampler.
type Edge int

const (
	EdgeRecordStart Edge = iota + 1
	EdgeRecordStop
	EdgeQuit
)

func (e Edge) String() string {
	switch e {
	case EdgeRecordStart:
		return "record_start"
	case EdgeRecordStop:
		return "record_stop"
	case EdgeQuit:
		return "quit"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// State is a snapshot of pressed keys, one bit per code.
type State [int(maxCode)/8 + 1]byte

// Down reports whether code is pressed in the snapshot.
func (s *State) Down(code Code) bool {
	if code > maxCode {
		return false
	}
	return s[code/8]&(1<<(code%8)) != 0
}

// Set marks code as pressed.
func (s *State) Set(code Code) {
	if code > maxCode {
		return
	}
	s[code/8] |= 1 << (code % 8)
}

// Merge ORs other into s.
func (s *State) Merge(other State) {
	for i := range s {
		s[i] |= other[i]
	}
}

// Reader returns the current key state. Implementations must not block.
type Reader interface {
	Read() (State, error)
}

// Sampler derives record/quit edges from successive key state reads.
type Sampler struct {
	reader Reader
	record Code
	quit   Code

	recordDown bool
}

// NewSampler builds a sampler watching record and quit on reader.
func NewSampler(reader Reader, record Code, quit Code) (*Sampler, error) {
	if reader == nil {
		return nil, errors.New("key reader is nil")
	}
	if record == quit {
		return nil, fmt.Errorf("record and quit keys must differ (both %s)", record)
	}
	return &Sampler{reader: reader, record: record, quit: quit}, nil
}

// Sample reads key state once. The record key is edge-triggered; the quit
// key reports EdgeQuit on every tick it is held.
func (s *Sampler) Sample() ([]Edge, error) {
	state, err := s.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read key state: %w", err)
	}

	var edges []Edge
	recordDown := state.Down(s.record)
	switch {
	case recordDown && !s.recordDown:
		edges = append(edges, EdgeRecordStart)
	case !recordDown && s.recordDown:
		edges = append(edges, EdgeRecordStop)
	}
	s.recordDown = recordDown

	if state.Down(s.quit) {
		edges = append(edges, EdgeQuit)
	}
	return edges, nil
}

// RecordHeld reports the last observed record key level.
func (s *Sampler) RecordHeld() bool {
	return s.recordDown
}
