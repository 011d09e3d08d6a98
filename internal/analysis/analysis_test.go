package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/response"
	"github.com/abhisek/vitalq/internal/store"
)

// completed writes a completed assessment with its outbox row.
func completed(t *testing.T, m *store.Memory, id string) assessment.Handoff {
	t.Helper()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	st := assessment.State{ID: id, ClientRef: "client-" + id, Status: assessment.StatusInProgress, CreatedAt: now, Version: 1}
	require.NoError(t, m.CreateState(ctx, st))

	st.Status = assessment.StatusCompleted
	st.Version = 2
	st.CompletedAt = &now
	h := assessment.Handoff{
		AssessmentID: id,
		ClientRef:    st.ClientRef,
		CompletedAt:  now,
		Responses:    []response.Response{{AssessmentID: id, QuestionID: "q1", Value: response.Text("yes"), Score: 2, Seq: 1}},
		Summary:      response.Summary{Answered: 1, RawScore: 2, WeightedScore: 2},
	}
	require.NoError(t, m.Commit(ctx, assessment.Commit{State: st, Handoff: &h}))
	return h
}

func TestDeliverMarksOutbox(t *testing.T) {
	m := store.NewMemory()
	h := completed(t, m, "a1")
	var buf bytes.Buffer
	d := NewDispatcher(m, NewJSONGenerator(&buf))

	require.NoError(t, d.Deliver(context.Background(), h))

	var got assessment.Handoff
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "a1", got.AssessmentID)
	require.Len(t, got.Responses, 1)
	assert.True(t, got.Responses[0].Value.Equal(response.Text("yes")))

	pending, err := m.PendingHandoffs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeliverFailureStaysPending(t *testing.T) {
	m := store.NewMemory()
	h := completed(t, m, "a1")
	boom := errors.New("generator down")
	d := NewDispatcher(m, GeneratorFunc(func(context.Context, assessment.Handoff) error { return boom }))

	err := d.Deliver(context.Background(), h)
	assert.ErrorIs(t, err, boom)

	pending, err := m.PendingHandoffs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestFlushRetriesUntilMaxAttempts(t *testing.T) {
	m := store.NewMemory()
	completed(t, m, "a1")
	completed(t, m, "a2")

	fail := map[string]bool{"a1": true}
	calls := map[string]int{}
	gen := GeneratorFunc(func(_ context.Context, h assessment.Handoff) error {
		calls[h.AssessmentID]++
		if fail[h.AssessmentID] {
			return errors.New("still down")
		}
		return nil
	})
	d := NewDispatcher(m, gen, WithMaxAttempts(2), WithLogger(logging.NewNop()))
	ctx := context.Background()

	n, err := d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// a1 has used both attempts and is no longer tried.
	fail["a1"] = false
	n, err = d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, calls["a1"])
	assert.Equal(t, 1, calls["a2"])
}

func TestRunStopsOnCancel(t *testing.T) {
	m := store.NewMemory()
	completed(t, m, "a1")
	delivered := make(chan string, 1)
	d := NewDispatcher(m, GeneratorFunc(func(_ context.Context, h assessment.Handoff) error {
		delivered <- h.AssessmentID
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case id := <-delivered:
		assert.Equal(t, "a1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("outbox not flushed")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestMultiStopsAtFirstError(t *testing.T) {
	var order []string
	gen := func(name string, err error) Generator {
		return GeneratorFunc(func(context.Context, assessment.Handoff) error {
			order = append(order, name)
			return err
		})
	}
	err := Multi(gen("a", nil), gen("b", errors.New("x")), gen("c", nil)).Generate(context.Background(), assessment.Handoff{})
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestMultiSkipsGeneratorsThatSucceeded(t *testing.T) {
	calls := map[string]int{}
	failB := true
	gen := func(name string) Generator {
		return GeneratorFunc(func(context.Context, assessment.Handoff) error {
			calls[name]++
			if name == "b" && failB {
				return errors.New("disk full")
			}
			return nil
		})
	}
	m := Multi(gen("a"), gen("b"), gen("c"))
	h := assessment.Handoff{AssessmentID: "a1"}
	ctx := context.Background()

	assert.Error(t, m.Generate(ctx, h))
	failB = false
	require.NoError(t, m.Generate(ctx, h))
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 1}, calls)

	// A different hand-off starts from the first generator.
	require.NoError(t, m.Generate(ctx, assessment.Handoff{AssessmentID: "a2"}))
	assert.Equal(t, 2, calls["a"])
}

func TestDeliverSkipsHandoffClaimedByFlush(t *testing.T) {
	m := store.NewMemory()
	h := completed(t, m, "a1")

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	gen := GeneratorFunc(func(context.Context, assessment.Handoff) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		return nil
	})
	d := NewDispatcher(m, gen)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- d.Deliver(ctx, h) }()
	<-entered

	n, err := d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "in-flight hand-off is not delivered again")
	require.NoError(t, d.Deliver(ctx, h))

	close(release)
	require.NoError(t, <-errc)

	n, err = d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	pending, err := m.PendingHandoffs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStaleClaimIsTakenOver(t *testing.T) {
	m := store.NewMemory()
	h := completed(t, m, "a1")
	ctx := context.Background()

	// A deliverer claimed the hand-off and died.
	claimedAt := time.Now().Add(-time.Hour)
	ok, err := m.ClaimHandoff(ctx, "a1", claimedAt, claimedAt.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	var got []string
	d := NewDispatcher(m, GeneratorFunc(func(_ context.Context, h assessment.Handoff) error {
		got = append(got, h.AssessmentID)
		return nil
	}), WithClaimLease(time.Minute))

	n, err := d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{h.AssessmentID}, got)
}

func TestLogGenerator(t *testing.T) {
	var buf bytes.Buffer
	g := LogGenerator{Log: logging.NewWriter(&buf, slog.LevelInfo)}
	require.NoError(t, g.Generate(context.Background(), assessment.Handoff{AssessmentID: "a1", Summary: response.Summary{Answered: 3}}))
	assert.Contains(t, buf.String(), "assessment_id=a1")
	assert.Contains(t, buf.String(), "answered=3")
}
