package assessment

import (
	"context"
	"errors"
	"strings"

	"github.com/orienta-lab/orienta/internal/store"
)

// SequencerStore is the slice of persistence the sequencer needs.
type SequencerStore interface {
	GetStudent(ctx context.Context, id int64) (store.Student, error)
	ListClassInstruments(ctx context.Context, classID int64) ([]string, error)
	ListResultTags(ctx context.Context, studentID int64) ([]string, error)
}

// NextInstrument walks the assigned list in assignment order and returns the
// first instrument not yet completed. The screening battery counts as done
// as soon as any of its sub-result tags exists. The second return is false
// when nothing remains.
//
// The walk depends only on set membership of completed, never on insertion
// order, so equal inputs always produce equal output.
func NextInstrument(assigned []Instrument, completed map[string]bool) (Instrument, bool) {
	screeningDone := false
	for tag := range completed {
		if strings.HasPrefix(tag, screeningTagPrefix) {
			screeningDone = true
			break
		}
	}

	for _, instrument := range assigned {
		if instrument == InstrumentScreening {
			if screeningDone {
				continue
			}
			return InstrumentScreening, true
		}
		if !completed[instrument.Tag()] {
			return instrument, true
		}
	}
	return InstrumentUnknown, false
}

// Sequencer resolves the next pending instrument for a student from the
// persisted state.
type Sequencer struct {
	store SequencerStore
}

func NewSequencer(s SequencerStore) *Sequencer {
	return &Sequencer{store: s}
}

// Next returns the next instrument for the student, or ok=false when the
// battery of assigned instruments is exhausted. Unknown students and
// students without a class resolve to "nothing pending" rather than an
// error: the sequencer fails closed.
func (s *Sequencer) Next(ctx context.Context, studentID int64) (Instrument, bool, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return InstrumentUnknown, false, nil
	}
	if err != nil {
		return InstrumentUnknown, false, err
	}
	if student.ClassID == 0 {
		return InstrumentUnknown, false, nil
	}

	tags, err := s.store.ListClassInstruments(ctx, student.ClassID)
	if err != nil {
		return InstrumentUnknown, false, err
	}
	assigned := make([]Instrument, 0, len(tags))
	for _, tag := range tags {
		if instrument, ok := ByTag(tag); ok {
			assigned = append(assigned, instrument)
		}
	}

	done, err := s.store.ListResultTags(ctx, studentID)
	if err != nil {
		return InstrumentUnknown, false, err
	}
	completed := make(map[string]bool, len(done))
	for _, tag := range done {
		completed[tag] = true
	}

	instrument, ok := NextInstrument(assigned, completed)
	return instrument, ok, nil
}

// NextRoute is Next mapped to the instrument's route name; empty string
// signals completion.
func (s *Sequencer) NextRoute(ctx context.Context, studentID int64) (string, error) {
	instrument, ok, err := s.Next(ctx, studentID)
	if err != nil || !ok {
		return "", err
	}
	return instrument.Route(), nil
}
