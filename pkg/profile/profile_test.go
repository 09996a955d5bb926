package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateEmptyMap(t *testing.T) {
	r := Evaluate(NewCompletionMap(), 1.0)
	assert.Equal(t, 0.0, r.Ratio)
	assert.False(t, r.NeedsCritical)
	assert.False(t, r.Ready)
}

func TestEvaluateWeightedRatio(t *testing.T) {
	m := NewCompletionMap()
	m.Register("a", 4)
	m.Register("b", 2)
	m.Register("c", 2)
	m.MarkCollected("a")

	r := Evaluate(m, 1.0)
	assert.InDelta(t, 0.5, r.Ratio, 1e-9)
	assert.False(t, r.NeedsCritical)
	assert.False(t, r.Ready)

	m.MarkCollected("b")
	m.MarkCollected("c")
	r = Evaluate(m, 1.0)
	assert.Equal(t, 1.0, r.Ratio)
	assert.True(t, r.Ready)
}

func TestCriticalFieldBlocksReadiness(t *testing.T) {
	// Even with a perfect ratio over the threshold, an uncollected
	// importance-5 field keeps readiness false.
	m := NewCompletionMap()
	m.Register("essential", MaxImportance)
	m.Register("minor", 1)
	m.MarkCollected("minor")

	r := Evaluate(m, 0.1)
	assert.True(t, r.NeedsCritical)
	assert.False(t, r.Ready)
	assert.True(t, r.Ratio >= 0.1)
}

func TestEvaluatePartialThreshold(t *testing.T) {
	m := NewCompletionMap()
	m.Register("a", 3)
	m.Register("b", 2)
	m.MarkCollected("a")

	r := Evaluate(m, 0.6)
	assert.True(t, r.Ready)

	r = Evaluate(m, 0.7)
	assert.False(t, r.Ready)
}

func TestRegisterImportanceFixed(t *testing.T) {
	m := NewCompletionMap()
	m.Register("a", 3)
	m.Register("a", 5) // no-op

	entry, ok := m.Entry("a")
	require.True(t, ok)
	assert.Equal(t, 3, entry.Importance)
	assert.Equal(t, 1, m.Len())
}

func TestRegisterClampsImportance(t *testing.T) {
	m := NewCompletionMap()
	m.Register("low", 0)
	m.Register("high", 9)

	low, _ := m.Entry("low")
	high, _ := m.Entry("high")
	assert.Equal(t, MinImportance, low.Importance)
	assert.Equal(t, MaxImportance, high.Importance)
}

func TestMarkCollectedUntracked(t *testing.T) {
	m := NewCompletionMap()
	assert.False(t, m.MarkCollected("ghost"))
}

func TestMissingOrdering(t *testing.T) {
	m := NewCompletionMap()
	m.Register("first_five", 5)
	m.Register("three", 3)
	m.Register("second_five", 5)
	m.Register("four", 4)
	m.MarkCollected("three")

	missing := m.Missing()
	require.Len(t, missing, 3)
	// Importance descending, registration order on ties.
	assert.Equal(t, "first_five", missing[0].Name)
	assert.Equal(t, "second_five", missing[1].Name)
	assert.Equal(t, "four", missing[2].Name)
}

func TestSwitchTemplateReplacesFieldSet(t *testing.T) {
	reg := MustLoadRegistry()
	tmpl, ok := reg.Lookup("spend")
	require.True(t, ok)

	values := Values{"goal": "retire early and travel"}
	m := SwitchTemplate(tmpl, values)

	assert.Equal(t, 5, m.Len())
	assert.False(t, m.Has("goal"), "discovery fields outside the template are dropped")
	assert.True(t, m.Has("retirement_age"))

	r := Evaluate(m, 1.0)
	assert.Equal(t, 0.0, r.Ratio)
	assert.True(t, r.NeedsCritical)
}

func TestSwitchTemplateReconcilesCollectedValues(t *testing.T) {
	reg := MustLoadRegistry()
	tmpl, _ := reg.Lookup("save")

	// retirement_age was already extracted before the switch; it must not be
	// re-solicited.
	values := Values{"retirement_age": "62", "goal": "keep my savings safe"}
	m := SwitchTemplate(tmpl, values)

	entry, ok := m.Entry("retirement_age")
	require.True(t, ok)
	assert.True(t, entry.Collected)

	entry, _ = m.Entry("healthcare_budget")
	assert.False(t, entry.Collected)
}

func TestCloneIsolation(t *testing.T) {
	m := NewCompletionMap()
	m.Register("a", 2)
	clone := m.Clone()
	clone.MarkCollected("a")

	orig, _ := m.Entry("a")
	assert.False(t, orig.Collected)
}

func TestRegistryLookupCaseInsensitive(t *testing.T) {
	reg := MustLoadRegistry()

	for _, name := range []string{"Spend", "SPEND", " spend "} {
		tmpl, ok := reg.Lookup(name)
		require.True(t, ok, "lookup %q", name)
		assert.Equal(t, "spend", tmpl.Name)
	}
}

func TestRegistryResolveUnknownFallsBack(t *testing.T) {
	reg := MustLoadRegistry()
	tmpl := reg.Resolve("cryptocurrency")
	assert.Equal(t, DefaultTemplateName, tmpl.Name)
}

func TestRegistryNamesAndDescriptions(t *testing.T) {
	reg := MustLoadRegistry()
	names := reg.Names()
	assert.Equal(t, []string{"spend", "leave", "save", "donate", "default"}, names)

	desc := reg.Descriptions()
	for _, name := range names {
		assert.Contains(t, desc, "- "+name+":")
	}
}

func TestLoadRegistryRejectsMissingDefault(t *testing.T) {
	doc := []byte(`
templates:
  - name: spend
    description: d
    fields:
      - name: retirement_age
        importance: 5
`)
	_, err := LoadRegistry(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default")
}
