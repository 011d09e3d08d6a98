package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/vitalq/internal/fault"
)

func yesNo(id string) Question {
	return Question{ID: id, Type: TypeYesNo, Weight: 1}
}

func dependent(id, on, equals string) Question {
	q := yesNo(id)
	q.Condition = &Condition{DependsOn: on, Equals: equals}
	return q
}

func TestDefault_EmbeddedBankPasses(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	mods := c.Modules()
	require.Len(t, mods, 8)
	for i, m := range mods {
		assert.Equal(t, i, m.Order)
		assert.NotEmpty(t, m.QuestionIDs, "module %s", m.ID)
	}
	assert.Equal(t, "cardiovascular", c.FirstModule())
}

func TestNew_OrdersModulesAndQuestions(t *testing.T) {
	c, err := New(Definition{Modules: []ModuleDef{
		{ID: "m2", Order: 1, Questions: []Question{yesNo("c")}},
		{ID: "m1", Order: 0, Questions: []Question{yesNo("a"), yesNo("b")}},
	}})
	require.NoError(t, err)

	assert.Equal(t, "m1", c.FirstModule())
	assert.Equal(t, 0, c.Index("a"))
	assert.Equal(t, 2, c.Index("c"))
	assert.Equal(t, -1, c.Index("zzz"))

	q, err := c.Question("c")
	require.NoError(t, err)
	assert.Equal(t, "m2", q.ModuleID)

	ids := []string{}
	for _, q := range c.QuestionsInModule("m1") {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestQuestion_NotFound(t *testing.T) {
	c, err := New(Definition{Modules: []ModuleDef{{ID: "m", Questions: []Question{yesNo("a")}}}})
	require.NoError(t, err)

	_, err = c.Question("nope")
	require.Error(t, err)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestLikertDefaultScaleApplied(t *testing.T) {
	c, err := New(Definition{Modules: []ModuleDef{{ID: "m", Questions: []Question{
		{ID: "l", Type: TypeLikertScale, Weight: 1},
	}}}})
	require.NoError(t, err)
	q, _ := c.Question("l")
	require.NotNil(t, q.Scale)
	assert.Equal(t, 1.0, q.Scale.Min)
	assert.Equal(t, 5.0, q.Scale.Max)
}

func TestDependents(t *testing.T) {
	c, err := New(Definition{Modules: []ModuleDef{{ID: "m", Questions: []Question{
		yesNo("a"), dependent("b", "a", "yes"), dependent("c", "a", "no"),
	}}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, c.Dependents("a"))
	assert.Empty(t, c.Dependents("b"))
}

func TestNew_IntegrityFailures(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{
			name: "duplicate question id",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{yesNo("a"), yesNo("a")}},
			}},
			want: "duplicate question ID",
		},
		{
			name: "question in two modules",
			def: Definition{Modules: []ModuleDef{
				{ID: "m1", Order: 0, Questions: []Question{yesNo("a")}},
				{ID: "m2", Order: 1, Questions: []Question{yesNo("a")}},
			}},
			want: "belongs to modules",
		},
		{
			name: "module order collision",
			def: Definition{Modules: []ModuleDef{
				{ID: "m1", Order: 0, Questions: []Question{yesNo("a")}},
				{ID: "m2", Order: 0, Questions: []Question{yesNo("b")}},
			}},
			want: "share order",
		},
		{
			name: "duplicate module id",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Order: 0, Questions: []Question{yesNo("a")}},
				{ID: "m", Order: 1, Questions: []Question{yesNo("b")}},
			}},
			want: "duplicate module ID",
		},
		{
			name: "dangling dependency",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{dependent("a", "ghost", "yes")}},
			}},
			want: "nonexistent",
		},
		{
			name: "forward dependency cycle",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{dependent("a", "b", "yes"), dependent("b", "a", "yes")}},
			}},
			want: "cycle",
		},
		{
			name: "self dependency",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{dependent("a", "a", "yes")}},
			}},
			want: "depends on itself",
		},
		{
			name: "impossible predicate value",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{yesNo("a"), dependent("b", "a", "maybe")}},
			}},
			want: "not a possible answer",
		},
		{
			name: "choice without options",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{{ID: "a", Type: TypeMultiSelect}}},
			}},
			want: "requires options",
		},
		{
			name: "unknown type",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{{ID: "a", Type: "SLIDER"}}},
			}},
			want: "unknown type",
		},
		{
			name: "negative weight",
			def: Definition{Modules: []ModuleDef{
				{ID: "m", Questions: []Question{{ID: "a", Type: TypeYesNo, Weight: -1}}},
			}},
			want: "weight must be",
		},
		{
			name: "non contiguous order",
			def: Definition{Modules: []ModuleDef{
				{ID: "m1", Order: 0, Questions: []Question{yesNo("a")}},
				{ID: "m2", Order: 2, Questions: []Question{yesNo("b")}},
			}},
			want: "not contiguous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, fault.KindCatalogIntegrity, fault.KindOf(err))
		})
	}
}

func TestNew_CollectsAllProblems(t *testing.T) {
	_, err := New(Definition{Modules: []ModuleDef{
		{ID: "m", Questions: []Question{yesNo("a"), yesNo("a"), dependent("b", "ghost", "yes")}},
	}})
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.GreaterOrEqual(t, len(ie.Problems), 2)
}

func TestLoadYAML_RejectsUnknownFields(t *testing.T) {
	src := `
modules:
  - id: m
    order: 0
    questions:
      - id: a
        type: YES_NO
        wieght: 1
`
	_, err := LoadYAML(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wieght")
}

func TestLoadYAML_Conditions(t *testing.T) {
	src := `
modules:
  - id: m
    order: 0
    questions:
      - id: a
        type: MULTI_SELECT
        weight: 1
        options:
          - {value: x, label: X}
      - id: b
        type: TEXT
        weight: 0
        condition:
          dependsOn: a
          hasAnySelection: true
`
	c, err := LoadYAML(strings.NewReader(src))
	require.NoError(t, err)
	q, err := c.Question("b")
	require.NoError(t, err)
	require.NotNil(t, q.Condition)
	assert.Equal(t, PredicateHasAnySelection, q.Condition.Predicate())
}
