package threat

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"testing"
	"time"
)

func TestPriority_Order(t *testing.T) {
	for i := 1; i < len(Priorities); i++ {
		if Priorities[i-1].Rank() >= Priorities[i].Rank() {
			t.Errorf("%s should outrank %s", Priorities[i-1], Priorities[i])
		}
	}
	if Priority("URGENT").Valid() {
		t.Error("URGENT should not be valid")
	}
	if !Critical.Top() || High.Top() {
		t.Error("only CRITICAL is the top tier")
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"CRITICAL", Critical, false},
		{" high ", High, false},
		{"medium", Medium, false},
		{"Low", Low, false},
		{"", "", true},
		{"severe", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultLabelTable(t *testing.T) {
	table := DefaultLabelTable()
	if err := table.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := map[int]string{0: "gun_shot", 1: "human_voices", 2: "engine_idling", 3: "dog_bark"}
	for i, name := range table.IndexMap() {
		if want[i] != name {
			t.Errorf("index %d = %q, want %q", i, name, want[i])
		}
	}
	pm := table.PriorityMap()
	if pm["gun_shot"] != Critical || pm["human_voices"] != High || pm["engine_idling"] != Medium || pm["dog_bark"] != Low {
		t.Errorf("PriorityMap = %v", pm)
	}
	// Every label has exactly one valid priority.
	for _, name := range table.Names() {
		if !pm[name].Valid() {
			t.Errorf("%s has no valid priority", name)
		}
	}
}

func TestLabelTable_Validate(t *testing.T) {
	tests := []struct {
		name  string
		table LabelTable
	}{
		{"empty", LabelTable{Version: "x"}},
		{"missing priority", LabelTable{Classes: []Class{{Name: "a", Priority: High}, {Name: "b"}}}},
		{"unknown priority", LabelTable{Classes: []Class{{Name: "a", Priority: "URGENT"}}}},
		{"duplicate", LabelTable{Classes: []Class{{Name: "a", Priority: Low}, {Name: "a", Priority: High}}}},
		{"nameless", LabelTable{Classes: []Class{{Priority: Low}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if !errors.Is(err, ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestLabelTable_Checks(t *testing.T) {
	table := DefaultLabelTable()
	if err := table.CheckWidth(4); err != nil {
		t.Errorf("CheckWidth(4) = %v", err)
	}
	if err := table.CheckWidth(5); !errors.Is(err, ErrConfig) {
		t.Errorf("CheckWidth(5) = %v, want ErrConfig", err)
	}
	if err := table.CheckNames(nil); err != nil {
		t.Errorf("CheckNames(nil) = %v", err)
	}
	if err := table.CheckNames([]string{"gun_shot", "human_voices", "dog_bark", "engine_idling"}); !errors.Is(err, ErrConfig) {
		t.Errorf("CheckNames(swapped) = %v, want ErrConfig", err)
	}
	if _, err := table.Class(4); !errors.Is(err, ErrConfig) {
		t.Errorf("Class(4) = %v, want ErrConfig", err)
	}
}

func TestProbabilities_Argmax(t *testing.T) {
	tests := []struct {
		name string
		p    Probabilities
		want int
	}{
		{"single max", Probabilities{0.1, 0.7, 0.1, 0.1}, 1},
		{"tie lowest index", Probabilities{0.4, 0.1, 0.4, 0.1}, 0},
		{"uniform", Probabilities{0.25, 0.25, 0.25, 0.25}, 0},
		{"tie later", Probabilities{0.1, 0.45, 0.45}, 1},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Argmax(); got != tt.want {
				t.Errorf("Argmax = %d, want %d", got, tt.want)
			}
		})
	}
}

func fixedAssembler(t *testing.T) *Assembler {
	t.Helper()
	at := time.Date(2025, 10, 18, 9, 30, 0, 123_000_000, time.UTC)
	a, err := NewAssembler(DefaultLabelTable(), WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return a
}

func TestAssembler_Assemble(t *testing.T) {
	a := fixedAssembler(t)

	tests := []struct {
		name       string
		probs      Probabilities
		wantClass  string
		wantStatus Status
		wantPrio   Priority
	}{
		{"gunshot is critical", Probabilities{0.9, 0.05, 0.03, 0.02}, "gun_shot", StatusCritical, Critical},
		{"voices pending", Probabilities{0.1, 0.6, 0.2, 0.1}, "human_voices", StatusPending, High},
		{"engine pending", Probabilities{0.1, 0.1, 0.7, 0.1}, "engine_idling", StatusPending, Medium},
		{"dog pending", Probabilities{0.1, 0.1, 0.1, 0.7}, "dog_bark", StatusPending, Low},
		{"tie picks lowest", Probabilities{0.1, 0.4, 0.1, 0.4}, "human_voices", StatusPending, High},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := a.Assemble(tt.probs, 1.5, 2.5)
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			if d.PredictedClass != tt.wantClass {
				t.Errorf("class = %q, want %q", d.PredictedClass, tt.wantClass)
			}
			if d.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", d.Status, tt.wantStatus)
			}
			if d.Priority != tt.wantPrio {
				t.Errorf("priority = %q, want %q", d.Priority, tt.wantPrio)
			}
			if d.Confidence != d.AllPredictions[d.PredictedClass] {
				t.Errorf("confidence %v != all_predictions[%s] %v", d.Confidence, d.PredictedClass, d.AllPredictions[d.PredictedClass])
			}
			if len(d.AllPredictions) != 4 {
				t.Errorf("all_predictions has %d entries, want 4", len(d.AllPredictions))
			}
			if d.Latitude != 1.5 || d.Longitude != 2.5 {
				t.Errorf("location = %v,%v", d.Latitude, d.Longitude)
			}
		})
	}
}

func TestAssembler_Timestamp(t *testing.T) {
	d, err := fixedAssembler(t).Assemble(Probabilities{1, 0, 0, 0}, DefaultLatitude, DefaultLongitude)
	if err != nil {
		t.Fatal(err)
	}
	if d.Timestamp != "2025-10-18T09:30:00.123Z" {
		t.Errorf("Timestamp = %q", d.Timestamp)
	}
	if !regexp.MustCompile(`^1760779800123-[0-9a-f]{8}$`).MatchString(d.ID) {
		t.Errorf("ID = %q, want ms timestamp plus 8 hex chars", d.ID)
	}
	if ts, err := d.Time(); err != nil || ts.UnixMilli() != 1760779800123 {
		t.Errorf("Time() = %v, %v", ts, err)
	}
}

func TestAssembler_UniqueIDs(t *testing.T) {
	a := fixedAssembler(t)
	seen := make(map[string]bool)
	for range 100 {
		d, err := a.Assemble(Probabilities{0, 1, 0, 0}, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if seen[d.ID] {
			t.Fatalf("duplicate ID %q within one millisecond", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestAssembler_Errors(t *testing.T) {
	a := fixedAssembler(t)

	if _, err := a.Assemble(Probabilities{0.5, 0.5}, 0, 0); !errors.Is(err, ErrInference) {
		t.Errorf("short vector: err = %v, want ErrInference", err)
	}
	if _, err := a.Assemble(Probabilities{math.NaN(), 0, 0, 0}, 0, 0); !errors.Is(err, ErrInference) {
		t.Errorf("NaN: err = %v, want ErrInference", err)
	}
	if _, err := NewAssembler(LabelTable{Classes: []Class{{Name: "x"}}}); !errors.Is(err, ErrConfig) {
		t.Errorf("missing priority: err = %v, want ErrConfig", err)
	}
}

func TestError_Kinds(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err      error
		sentinel error
		kind     Kind
	}{
		{ValidationError("normalize", cause), ErrValidation, KindValidation},
		{InferenceError("extract", cause), ErrInference, KindInference},
		{ConfigError("labels", cause), ErrConfig, KindConfig},
		{UnavailableError("models", nil), ErrModelUnavailable, KindModelUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("item a.wav: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if got := KindOf(wrapped); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if tt.kind != KindModelUnavailable && !errors.Is(wrapped, cause) {
				t.Error("cause not reachable")
			}
		})
	}
	if KindOf(cause) != KindInference {
		t.Error("untagged errors default to inference")
	}
	if got := StageOf(ValidationError("normalize", cause)); got != "normalize" {
		t.Errorf("StageOf = %q", got)
	}
}
