package matrix

import (
	"errors"
	"fmt"

	"github.com/park285/matchmatrix-bot/internal/outcome"
)

var (
	ErrDuplicateParticipant = errors.New("participant listed twice")
	ErrUnknownParticipant   = errors.New("participant not in this matrix")
	ErrSelfMatch            = errors.New("cannot report a match against the same player")
	ErrInconsistentTable    = errors.New("results table is not symmetric")
)

// Participant is a player with the display name captured when they were added.
type Participant struct {
	ID   string
	Name string
}

type cell struct{ x, y string }

// Matrix holds the full pairwise results for a fixed, ordered participant list.
// At(x, y) is the cell printed in row y, column x: the result of y's match
// against x from y's side.
type Matrix struct {
	participants []Participant
	index        map[string]int
	results      map[cell]outcome.Outcome
	suppressed   map[string]struct{}
}

// New builds a matrix with every off-diagonal cell Unplayed.
func New(participants []Participant) (*Matrix, error) {
	m, err := empty(participants)
	if err != nil {
		return nil, err
	}
	for _, y := range m.participants {
		for _, x := range m.participants {
			o := outcome.Unplayed
			if x.ID == y.ID {
				o = outcome.Unplayable
			}
			m.results[cell{x.ID, y.ID}] = o
		}
	}
	return m, nil
}

// FromTable rebuilds a matrix from decoded cells. at(x, y) must cover every
// pair; the result has to satisfy the same invariants as a live matrix.
func FromTable(participants []Participant, at func(x, y string) outcome.Outcome, suppressed []string) (*Matrix, error) {
	m, err := empty(participants)
	if err != nil {
		return nil, err
	}
	for _, y := range m.participants {
		for _, x := range m.participants {
			m.results[cell{x.ID, y.ID}] = at(x.ID, y.ID)
		}
	}
	for _, a := range m.participants {
		if m.results[cell{a.ID, a.ID}] != outcome.Unplayable {
			return nil, fmt.Errorf("%w: %s against themself is %v", ErrInconsistentTable, a.Name, m.results[cell{a.ID, a.ID}])
		}
		for _, b := range m.participants {
			if a.ID == b.ID {
				continue
			}
			ab, ba := m.results[cell{a.ID, b.ID}], m.results[cell{b.ID, a.ID}]
			if ab != ba.Invert() {
				return nil, fmt.Errorf("%w: %s/%s reads %v but %s/%s reads %v", ErrInconsistentTable, a.Name, b.Name, ab, b.Name, a.Name, ba)
			}
		}
	}
	for _, id := range suppressed {
		if _, ok := m.index[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
		m.suppressed[id] = struct{}{}
	}
	return m, nil
}

func empty(participants []Participant) (*Matrix, error) {
	m := &Matrix{
		participants: append([]Participant(nil), participants...),
		index:        make(map[string]int, len(participants)),
		results:      make(map[cell]outcome.Outcome, len(participants)*len(participants)),
		suppressed:   make(map[string]struct{}),
	}
	for i, p := range m.participants {
		if _, dup := m.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.ID)
		}
		m.index[p.ID] = i
	}
	return m, nil
}

// Participants returns a copy of the participant list in grid order.
func (m *Matrix) Participants() []Participant {
	return append([]Participant(nil), m.participants...)
}

func (m *Matrix) Len() int { return len(m.participants) }

func (m *Matrix) Lookup(id string) (Participant, bool) {
	i, ok := m.index[id]
	if !ok {
		return Participant{}, false
	}
	return m.participants[i], true
}

// At returns the cell in row y, column x.
func (m *Matrix) At(x, y string) outcome.Outcome {
	o, ok := m.results[cell{x, y}]
	if !ok {
		return outcome.Unplayable
	}
	return o
}

// Report records a match reported by reporter: o is the score from the
// reporter's side. Both cells are written or neither is.
func (m *Matrix) Report(reporter, opponent string, o outcome.Outcome) error {
	if reporter == opponent {
		return ErrSelfMatch
	}
	for _, id := range []string{reporter, opponent} {
		if _, ok := m.index[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
	}
	m.results[cell{reporter, opponent}] = o.Invert()
	m.results[cell{opponent, reporter}] = o
	return nil
}

// SetVisible toggles whether id may be pinged for open matches and reports
// whether anything changed.
func (m *Matrix) SetVisible(id string, visible bool) (bool, error) {
	if _, ok := m.index[id]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	_, hidden := m.suppressed[id]
	if visible {
		if !hidden {
			return false, nil
		}
		delete(m.suppressed, id)
		return true, nil
	}
	if hidden {
		return false, nil
	}
	m.suppressed[id] = struct{}{}
	return true, nil
}

func (m *Matrix) Suppressed(id string) bool {
	_, ok := m.suppressed[id]
	return ok
}

// Summary counts wins and played matches on id's row.
func (m *Matrix) Summary(id string) (wins, played int) {
	for _, x := range m.participants {
		o := m.At(x.ID, id)
		if o.IsWin() {
			wins++
		}
		if o.IsPlayed() {
			played++
		}
	}
	return wins, played
}

// Open lists the opponents id still has to play, in grid order.
func (m *Matrix) Open(id string) []Participant {
	var out []Participant
	for _, x := range m.participants {
		if m.At(id, x.ID) == outcome.Unplayed {
			out = append(out, x)
		}
	}
	return out
}

func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		participants: append([]Participant(nil), m.participants...),
		index:        make(map[string]int, len(m.index)),
		results:      make(map[cell]outcome.Outcome, len(m.results)),
		suppressed:   make(map[string]struct{}, len(m.suppressed)),
	}
	for k, v := range m.index {
		c.index[k] = v
	}
	for k, v := range m.results {
		c.results[k] = v
	}
	for k := range m.suppressed {
		c.suppressed[k] = struct{}{}
	}
	return c
}

// Equal reports whether both matrices list the same participants in the same
// order with identical cells and suppression flags.
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.participants) != len(o.participants) || len(m.suppressed) != len(o.suppressed) {
		return false
	}
	for i := range m.participants {
		if m.participants[i] != o.participants[i] {
			return false
		}
	}
	for k, v := range m.results {
		if o.results[k] != v {
			return false
		}
	}
	for k := range m.suppressed {
		if _, ok := o.suppressed[k]; !ok {
			return false
		}
	}
	return true
}
