package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/response"
)

func chainCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Definition{Modules: []catalog.ModuleDef{
		{ID: "m1", Order: 0, Questions: []catalog.Question{
			{ID: "symptoms", Type: catalog.TypeMultiSelect, Options: []catalog.Option{{Value: "cramps"}, {Value: "bloating"}}},
			{ID: "detail", Type: catalog.TypeText,
				Condition: &catalog.Condition{DependsOn: "symptoms", HasAnySelection: true}},
			{ID: "smoker", Type: catalog.TypeMultipleChoice, Options: []catalog.Option{{Value: "never"}, {Value: "former"}, {Value: "current"}}},
			{ID: "packs", Type: catalog.TypeNumberInput,
				Condition: &catalog.Condition{DependsOn: "smoker", In: []string{"former", "current"}}},
		}},
		{ID: "m2", Order: 1, Questions: []catalog.Question{
			{ID: "pain", Type: catalog.TypeYesNo},
			{ID: "pain_freq", Type: catalog.TypeFrequency,
				Condition: &catalog.Condition{DependsOn: "pain", Equals: "yes"}},
			{ID: "pain_worse", Type: catalog.TypeYesNo,
				Condition: &catalog.Condition{DependsOn: "pain_freq", In: []string{"often", "always"}}},
		}},
	}})
	require.NoError(t, err)
	return c
}

func answered(id string, v response.Value, seq int64) response.Response {
	return response.Response{QuestionID: id, Value: v, Seq: seq}
}

func q(t *testing.T, c *catalog.Catalog, id string) catalog.Question {
	t.Helper()
	out, err := c.Question(id)
	require.NoError(t, err)
	return out
}

func TestStatus(t *testing.T) {
	c := chainCatalog(t)
	e := New(c)

	tests := []struct {
		name     string
		history  []response.Response
		question string
		want     Status
	}{
		{"no condition", nil, "pain", Applicable},
		{"dependency unanswered", nil, "pain_freq", Deferred},
		{"equals satisfied", []response.Response{answered("pain", response.Text("yes"), 1)}, "pain_freq", Applicable},
		{"equals disqualified", []response.Response{answered("pain", response.Text("no"), 1)}, "pain_freq", Excluded},
		{"dependency skipped", []response.Response{{QuestionID: "pain", Skipped: true, Seq: 1}}, "pain_freq", Excluded},
		{"in set satisfied", []response.Response{answered("smoker", response.Text("former"), 1)}, "packs", Applicable},
		{"in set disqualified", []response.Response{answered("smoker", response.Text("never"), 1)}, "packs", Excluded},
		{"has any selection", []response.Response{answered("symptoms", response.Choices("cramps"), 1)}, "detail", Applicable},
		{"empty selection", []response.Response{answered("symptoms", response.Choices(), 1)}, "detail", Excluded},
		{"transitive exclusion", []response.Response{answered("pain", response.Text("no"), 1)}, "pain_worse", Excluded},
		{"transitive deferral", []response.Response{answered("pain", response.Text("yes"), 1)}, "pain_worse", Deferred},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := response.NewHistory(tt.history)
			assert.Equal(t, tt.want, e.Status(q(t, c, tt.question), h))
			assert.Equal(t, tt.want, e.Statuses(h)[tt.question])
			assert.Equal(t, tt.want == Applicable, e.IsApplicable(q(t, c, tt.question), h))
		})
	}
}

func TestInvalidate_Cascades(t *testing.T) {
	c := chainCatalog(t)
	e := New(c)
	h := response.NewHistory([]response.Response{
		answered("pain", response.Text("yes"), 1),
		answered("pain_freq", response.Text("often"), 2),
		answered("pain_worse", response.Text("yes"), 3),
	})
	assert.Empty(t, e.Invalidate(h))

	h.Put(answered("pain", response.Text("no"), 1))
	removed := e.Invalidate(h)
	assert.Equal(t, []string{"pain_freq", "pain_worse"}, removed)
	assert.True(t, h.Has("pain"))
	assert.Equal(t, 1, h.Len())
}

func TestInvalidate_DropsAnswerWhenDependencyRemoved(t *testing.T) {
	c := chainCatalog(t)
	e := New(c)
	h := response.NewHistory([]response.Response{
		answered("symptoms", response.Choices("bloating"), 1),
		answered("detail", response.Text("after meals"), 2),
	})

	h.Delete("symptoms")
	assert.Equal(t, []string{"detail"}, e.Invalidate(h))
}

func TestSatisfies_MultiSelectEquals(t *testing.T) {
	cond := catalog.Condition{DependsOn: "x", Equals: "Cramps"}
	assert.True(t, Satisfies(cond, response.Choices("bloating", "cramps")))
	assert.False(t, Satisfies(cond, response.Choices("bloating")))
	assert.True(t, Satisfies(catalog.Condition{DependsOn: "x"}, response.Text("anything")))
}
