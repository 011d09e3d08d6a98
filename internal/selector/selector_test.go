package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/logic"
	"github.com/abhisek/vitalq/internal/metrics"
	"github.com/abhisek/vitalq/internal/response"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	yn := func(id string, required bool) catalog.Question {
		return catalog.Question{ID: id, Type: catalog.TypeYesNo, Weight: 1, Required: required}
	}
	followUp := yn("d", false)
	followUp.Condition = &catalog.Condition{DependsOn: "a", Equals: "yes"}
	c, err := catalog.New(catalog.Definition{Modules: []catalog.ModuleDef{
		{ID: "m1", Order: 0, Questions: []catalog.Question{yn("a", true), yn("b", false), yn("c", true), followUp}},
		{ID: "m2", Order: 1, Questions: []catalog.Question{yn("e", false)}},
	}})
	require.NoError(t, err)
	return c
}

func newSelector(t *testing.T, opts ...Option) *Selector {
	c := newCatalog(t)
	return New(c, logic.New(c), opts...)
}

func ids(qs []catalog.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func staticHint(h *Hint, err error) HintProvider {
	return HintProviderFunc(func(context.Context, HintContext) (*Hint, error) { return h, err })
}

func TestCandidates(t *testing.T) {
	s := newSelector(t)
	h := response.NewHistory(nil)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Candidates("m1", h)), "d is deferred until a is answered")

	h.Put(response.Response{QuestionID: "a", Value: response.Text("yes"), Seq: 1})
	assert.Equal(t, []string{"b", "c", "d"}, ids(s.Candidates("m1", h)))

	h.Put(response.Response{QuestionID: "a", Value: response.Text("no"), Seq: 1})
	assert.Equal(t, []string{"b", "c"}, ids(s.Candidates("m1", h)))
}

func TestSelectNext_FallbackWithoutProvider(t *testing.T) {
	s := newSelector(t)
	sel, ok := s.SelectNext(context.Background(), "x", "m1", response.NewHistory(nil))
	require.True(t, ok)
	assert.Equal(t, "a", sel.Question.ID)
	assert.Equal(t, SourceFallback, sel.Source)
	assert.Empty(t, sel.Skip)
}

func TestSelectNext_EmptyModule(t *testing.T) {
	s := newSelector(t)
	h := response.NewHistory([]response.Response{{QuestionID: "e", Value: response.Text("no"), Seq: 1}})
	_, ok := s.SelectNext(context.Background(), "x", "m2", h)
	assert.False(t, ok)
}

func TestSelectNext_AcceptsHintAndFiltersSkips(t *testing.T) {
	var seen HintContext
	provider := HintProviderFunc(func(_ context.Context, hc HintContext) (*Hint, error) {
		seen = hc
		return &Hint{
			QuestionID: "d",
			SkipList:   []string{"b", "c", "d", "e", "nope", "b"},
			Reasoning:  "follow up first",
		}, nil
	})
	m := metrics.New()
	s := newSelector(t, WithHintProvider(provider), WithMetrics(m))
	h := response.NewHistory([]response.Response{{QuestionID: "a", Value: response.Text("yes"), Score: 2, Seq: 1}})

	sel, ok := s.SelectNext(context.Background(), "x", "m1", h)
	require.True(t, ok)
	assert.Equal(t, "d", sel.Question.ID)
	assert.Equal(t, SourceHint, sel.Source)
	assert.Equal(t, []string{"b"}, sel.Skip, "required, chosen, out-of-module and unknown ids are dropped")
	assert.Equal(t, "follow up first", sel.Reasoning)

	assert.Equal(t, "m1", seen.Module.ID)
	assert.Equal(t, []string{"b", "c", "d"}, ids(seen.Candidates))
	require.Len(t, seen.Recent, 1)
	assert.Equal(t, "a", seen.Recent[0].QuestionID)
	assert.Equal(t, 2.0, seen.Recent[0].Score)
}

func TestSelectNext_KeepsGatesOfRequiredQuestions(t *testing.T) {
	q := func(id string, required bool, dependsOn string) catalog.Question {
		out := catalog.Question{ID: id, Type: catalog.TypeYesNo, Weight: 1, Required: required}
		if dependsOn != "" {
			out.Condition = &catalog.Condition{DependsOn: dependsOn, Equals: "yes"}
		}
		return out
	}
	// x gates z through y; w gates only optional questions.
	c, err := catalog.New(catalog.Definition{Modules: []catalog.ModuleDef{
		{ID: "m1", Order: 0, Questions: []catalog.Question{q("first", false, ""), q("x", false, ""), q("w", false, "")}},
		{ID: "m2", Order: 1, Questions: []catalog.Question{
			q("y", false, "x"), q("z", true, "y"), q("v", false, "w"),
		}},
	}})
	require.NoError(t, err)

	s := New(c, logic.New(c), WithHintProvider(staticHint(&Hint{QuestionID: "first", SkipList: []string{"x", "w"}}, nil)))
	sel, ok := s.SelectNext(context.Background(), "x", "m1", response.NewHistory(nil))
	require.True(t, ok)
	assert.Equal(t, "first", sel.Question.ID)
	assert.Equal(t, []string{"w"}, sel.Skip, "skipping x would exclude required z")
}

func TestSelectNext_InvalidHintFallsBack(t *testing.T) {
	s := newSelector(t, WithHintProvider(staticHint(&Hint{QuestionID: "e", SkipList: []string{"b"}}, nil)))
	sel, ok := s.SelectNext(context.Background(), "x", "m1", response.NewHistory(nil))
	require.True(t, ok)
	assert.Equal(t, "a", sel.Question.ID)
	assert.Equal(t, SourceFallback, sel.Source)
	assert.Empty(t, sel.Skip)
}

func TestSelectNext_ProviderErrorFallsBack(t *testing.T) {
	for name, p := range map[string]HintProvider{
		"error":    staticHint(nil, errors.New("boom")),
		"nil hint": staticHint(nil, nil),
	} {
		t.Run(name, func(t *testing.T) {
			s := newSelector(t, WithHintProvider(p))
			sel, ok := s.SelectNext(context.Background(), "x", "m1", response.NewHistory(nil))
			require.True(t, ok)
			assert.Equal(t, "a", sel.Question.ID)
			assert.Equal(t, SourceFallback, sel.Source)
		})
	}
}

func TestSelectNext_TimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := HintProviderFunc(func(context.Context, HintContext) (*Hint, error) {
		<-release // ignores ctx on purpose
		return &Hint{QuestionID: "b", SkipList: []string{"a"}}, nil
	})
	s := newSelector(t, WithHintProvider(stuck), WithTimeout(20*time.Millisecond))

	start := time.Now()
	sel, ok := s.SelectNext(context.Background(), "x", "m1", response.NewHistory(nil))
	require.True(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "a", sel.Question.ID)
	assert.Empty(t, sel.Skip)
}

func TestSelectNext_HonorsCallerCancellation(t *testing.T) {
	waits := HintProviderFunc(func(ctx context.Context, _ HintContext) (*Hint, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := newSelector(t, WithHintProvider(waits), WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sel, ok := s.SelectNext(ctx, "x", "m1", response.NewHistory(nil))
	require.True(t, ok)
	assert.Equal(t, SourceFallback, sel.Source)
}
