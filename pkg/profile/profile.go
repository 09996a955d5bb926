// Package profile tracks which facts about the user have been collected and
// the values extracted for them. The completion map is the active schema of
// solicited fields; readiness over it drives orchestrator routing.
package profile

import "fmt"

const (
	// MaxImportance is the highest field weight. A field at this weight is
	// critical: readiness is blocked while it is uncollected.
	MaxImportance = 5

	// MinImportance is the lowest field weight.
	MinImportance = 1

	// GoalField is the discovery field whose value selects the template.
	GoalField = "goal"
)

// Entry is the completion state of a single tracked field. Importance is fixed
// at registration time; Collected only ever transitions false to true.
type Entry struct {
	Collected  bool `json:"collected"`
	Importance int  `json:"importance"`
}

// CompletionMap is the ordered registry of fields currently being solicited.
// Registration order is preserved so importance ties break deterministically.
type CompletionMap struct {
	entries map[string]Entry
	order   []string
}

// NewCompletionMap creates an empty completion map.
func NewCompletionMap() *CompletionMap {
	return &CompletionMap{entries: make(map[string]Entry)}
}

// DefaultDiscoveryMap returns the goal-discovery schema every session starts
// with.
func DefaultDiscoveryMap() *CompletionMap {
	m := NewCompletionMap()
	m.Register(GoalField, 5)
	m.Register("age", 2)
	m.Register("salary", 3)
	m.Register("savings", 4)
	m.Register("location", 5)
	return m
}

// Register adds a field with the given importance. Importance is clamped to
// [MinImportance, MaxImportance]. Re-registering an existing field is a no-op:
// importance never changes while a field is tracked.
func (m *CompletionMap) Register(field string, importance int) {
	if _, exists := m.entries[field]; exists {
		return
	}
	if importance < MinImportance {
		importance = MinImportance
	}
	if importance > MaxImportance {
		importance = MaxImportance
	}
	m.entries[field] = Entry{Importance: importance}
	m.order = append(m.order, field)
}

// MarkCollected flips a field to collected. Returns false when the field is
// not tracked. Collected fields stay collected.
func (m *CompletionMap) MarkCollected(field string) bool {
	entry, ok := m.entries[field]
	if !ok {
		return false
	}
	entry.Collected = true
	m.entries[field] = entry
	return true
}

// Entry returns the completion state of a field.
func (m *CompletionMap) Entry(field string) (Entry, bool) {
	entry, ok := m.entries[field]
	return entry, ok
}

// Has reports whether the field is tracked.
func (m *CompletionMap) Has(field string) bool {
	_, ok := m.entries[field]
	return ok
}

// Fields returns the tracked field names in registration order.
func (m *CompletionMap) Fields() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of tracked fields.
func (m *CompletionMap) Len() int {
	return len(m.order)
}

// AllCollected reports whether every tracked field is collected. An empty map
// is trivially all-collected.
func (m *CompletionMap) AllCollected() bool {
	for _, field := range m.order {
		if !m.entries[field].Collected {
			return false
		}
	}
	return true
}

// MissingField pairs an uncollected field with its importance.
type MissingField struct {
	Name       string
	Importance int
}

// Missing returns the uncollected fields sorted by importance descending,
// ties broken by registration order. Insertion sort keeps the registration
// order stable within equal importance.
func (m *CompletionMap) Missing() []MissingField {
	var missing []MissingField
	for _, field := range m.order {
		entry := m.entries[field]
		if entry.Collected {
			continue
		}
		mf := MissingField{Name: field, Importance: entry.Importance}
		pos := len(missing)
		for pos > 0 && missing[pos-1].Importance < mf.Importance {
			pos--
		}
		missing = append(missing, MissingField{})
		copy(missing[pos+1:], missing[pos:])
		missing[pos] = mf
	}
	return missing
}

// Clone returns a deep copy of the completion map.
func (m *CompletionMap) Clone() *CompletionMap {
	clone := NewCompletionMap()
	for _, field := range m.order {
		entry := m.entries[field]
		clone.entries[field] = entry
		clone.order = append(clone.order, field)
	}
	return clone
}

// Snapshot returns a plain map view of the completion entries, keyed by field.
func (m *CompletionMap) Snapshot() map[string]Entry {
	out := make(map[string]Entry, len(m.entries))
	for field, entry := range m.entries {
		out[field] = entry
	}
	return out
}

// String renders the completion map for inclusion in agent task messages.
func (m *CompletionMap) String() string {
	s := "{"
	for i, field := range m.order {
		entry := m.entries[field]
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: {collected: %t, importance: %d}", field, entry.Collected, entry.Importance)
	}
	return s + "}"
}

// Values holds the extracted value per field. Updates overwrite so user
// corrections win; values are never deleted during a session.
type Values map[string]string

// Clone returns a copy of the value map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Readiness is the result of evaluating a completion map against the
// configured threshold.
type Readiness struct {
	Ready         bool
	NeedsCritical bool
	Ratio         float64
}

// Evaluate computes the importance-weighted completeness of the map.
// Ratio is sum(importance of collected) / sum(importance of all), 0 for an
// empty map. NeedsCritical is true while any MaxImportance field is
// uncollected; readiness requires the ratio to meet the threshold AND no
// critical field outstanding.
func Evaluate(m *CompletionMap, threshold float64) Readiness {
	if m.Len() == 0 {
		return Readiness{Ratio: 0, NeedsCritical: false, Ready: false}
	}

	total := 0
	collected := 0
	needsCritical := false
	for _, field := range m.order {
		entry := m.entries[field]
		total += entry.Importance
		if entry.Collected {
			collected += entry.Importance
		} else if entry.Importance == MaxImportance {
			needsCritical = true
		}
	}

	ratio := float64(collected) / float64(total)
	return Readiness{
		Ratio:         ratio,
		NeedsCritical: needsCritical,
		Ready:         !needsCritical && ratio >= threshold,
	}
}

// SwitchTemplate replaces the tracked field set with the template's fields.
// Fields outside the template are dropped from tracking. A field whose value
// already exists in values is re-marked collected, so facts gathered during
// discovery survive the schema switch.
func SwitchTemplate(tmpl *Template, values Values) *CompletionMap {
	m := NewCompletionMap()
	for _, spec := range tmpl.Fields {
		m.Register(spec.Name, spec.Importance)
		if _, known := values[spec.Name]; known {
			m.MarkCollected(spec.Name)
		}
	}
	return m
}
