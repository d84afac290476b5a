package threat

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const stageAssemble = "assemble"

// IDFunc derives a detection identifier from its creation time.
type IDFunc func(time.Time) string

// NewID returns the creation time in Unix milliseconds followed by eight hex
// characters of a random UUID, e.g. "1760781600123-9f1c2ab4".
func NewID(t time.Time) string {
	u := uuid.New()
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + u.String()[:8]
}

// Assembler turns classifier output into Detection records.
type Assembler struct {
	table LabelTable
	now   func() time.Time
	newID IDFunc
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// WithIDFunc overrides identifier generation.
func WithIDFunc(f IDFunc) AssemblerOption {
	return func(a *Assembler) { a.newID = f }
}

// NewAssembler creates an Assembler for table. The table is validated.
func NewAssembler(table LabelTable, opts ...AssemblerOption) (*Assembler, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	a := &Assembler{table: table, now: time.Now, newID: NewID}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Table returns the label table.
func (a *Assembler) Table() LabelTable {
	return a.table
}

// Assemble selects the most probable class and builds a Detection.
func (a *Assembler) Assemble(probs Probabilities, lat, lon float64) (*Detection, error) {
	if len(probs) != a.table.Len() {
		return nil, InferenceError(stageAssemble, fmt.Errorf("got %d probabilities for %d classes", len(probs), a.table.Len()))
	}
	if err := probs.Check(); err != nil {
		return nil, InferenceError(stageAssemble, err)
	}

	idx := probs.Argmax()
	class, err := a.table.Class(idx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	return &Detection{
		ID:             a.newID(now),
		PredictedClass: class.Name,
		Confidence:     probs[idx],
		Timestamp:      now.Format(TimestampLayout),
		Latitude:       lat,
		Longitude:      lon,
		Status:         StatusFor(class.Priority),
		Priority:       class.Priority,
		AllPredictions: probs.Map(a.table),
	}, nil
}
