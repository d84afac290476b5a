package threat

import (
	"fmt"
)

// Class is one entry of the label table.
type Class struct {
	Name     string   `json:"name" yaml:"name"`
	Priority Priority `json:"priority" yaml:"priority"`
}

// LabelTable maps classifier output indices to classes. It must match the
// classifier it is paired with; see Validate.
type LabelTable struct {
	Version string  `json:"version" yaml:"version"`
	Classes []Class `json:"classes" yaml:"classes"`
}

// DefaultLabelTable returns the table the bundled classifier was trained
// with.
func DefaultLabelTable() LabelTable {
	return LabelTable{
		Version: "1",
		Classes: []Class{
			{Name: "gun_shot", Priority: Critical},
			{Name: "human_voices", Priority: High},
			{Name: "engine_idling", Priority: Medium},
			{Name: "dog_bark", Priority: Low},
		},
	}
}

// Len returns the number of classes.
func (t LabelTable) Len() int {
	return len(t.Classes)
}

// Validate checks that the table is non-empty, names are unique and
// non-empty, and every class has a known priority.
func (t LabelTable) Validate() error {
	if len(t.Classes) == 0 {
		return ConfigError("labels", fmt.Errorf("label table %q is empty", t.Version))
	}
	seen := make(map[string]int, len(t.Classes))
	for i, c := range t.Classes {
		if c.Name == "" {
			return ConfigError("labels", fmt.Errorf("class %d has no name", i))
		}
		if j, dup := seen[c.Name]; dup {
			return ConfigError("labels", fmt.Errorf("class %q appears at %d and %d", c.Name, j, i))
		}
		seen[c.Name] = i
		if !c.Priority.Valid() {
			return ConfigError("labels", fmt.Errorf("class %q has no valid priority (got %q)", c.Name, c.Priority))
		}
	}
	return nil
}

// CheckWidth returns a ConfigError unless the table has exactly n classes.
func (t LabelTable) CheckWidth(n int) error {
	if len(t.Classes) != n {
		return ConfigError("labels", fmt.Errorf("label table %q has %d classes, classifier emits %d", t.Version, len(t.Classes), n))
	}
	return nil
}

// CheckNames returns a ConfigError unless names matches the table order.
// An empty names list is accepted.
func (t LabelTable) CheckNames(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if err := t.CheckWidth(len(names)); err != nil {
		return err
	}
	for i, n := range names {
		if t.Classes[i].Name != n {
			return ConfigError("labels", fmt.Errorf("index %d is %q in the label table but %q in the model", i, t.Classes[i].Name, n))
		}
	}
	return nil
}

// Class returns the class at index i.
func (t LabelTable) Class(i int) (Class, error) {
	if i < 0 || i >= len(t.Classes) {
		return Class{}, ConfigError("labels", fmt.Errorf("index %d outside label table %q of %d classes", i, t.Version, len(t.Classes)))
	}
	c := t.Classes[i]
	if !c.Priority.Valid() {
		return Class{}, ConfigError("labels", fmt.Errorf("class %q has no valid priority", c.Name))
	}
	return c, nil
}

// Names returns the class names in index order.
func (t LabelTable) Names() []string {
	out := make([]string, len(t.Classes))
	for i, c := range t.Classes {
		out[i] = c.Name
	}
	return out
}

// IndexMap returns index to name.
func (t LabelTable) IndexMap() map[int]string {
	out := make(map[int]string, len(t.Classes))
	for i, c := range t.Classes {
		out[i] = c.Name
	}
	return out
}

// PriorityMap returns name to priority.
func (t LabelTable) PriorityMap() map[string]Priority {
	out := make(map[string]Priority, len(t.Classes))
	for _, c := range t.Classes {
		out[c.Name] = c.Priority
	}
	return out
}
