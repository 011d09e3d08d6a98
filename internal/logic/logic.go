// Package logic evaluates conditional question visibility against a
// response history.
package logic

import (
	"strings"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/response"
)

// Status is the applicability of a question given the answers so far.
type Status int

const (
	// Applicable questions may be asked now.
	Applicable Status = iota
	// Deferred questions wait on an unanswered dependency.
	Deferred
	// Excluded questions can never be asked under the current answers:
	// their dependency was answered with a disqualifying value, was
	// skipped, or is itself excluded.
	Excluded
)

func (s Status) String() string {
	switch s {
	case Applicable:
		return "applicable"
	case Deferred:
		return "deferred"
	case Excluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Evaluator evaluates conditions over one catalog.
type Evaluator struct {
	catalog *catalog.Catalog
}

// New creates an Evaluator.
func New(c *catalog.Catalog) *Evaluator {
	return &Evaluator{catalog: c}
}

// IsApplicable reports whether q may be asked given h.
func (e *Evaluator) IsApplicable(q catalog.Question, h *response.History) bool {
	return e.Status(q, h) == Applicable
}

// Status resolves q's applicability, following its dependency chain.
func (e *Evaluator) Status(q catalog.Question, h *response.History) Status {
	if q.Condition == nil || q.Condition.DependsOn == "" {
		return Applicable
	}
	dep, err := e.catalog.Question(q.Condition.DependsOn)
	if err != nil {
		// Catalog validation rejects dangling dependencies.
		return Excluded
	}
	switch e.Status(dep, h) {
	case Excluded:
		return Excluded
	case Deferred:
		return Deferred
	}

	r, ok := h.Get(dep.ID)
	if !ok {
		return Deferred
	}
	if r.Skipped {
		return Excluded
	}
	if Satisfies(*q.Condition, r.Value) {
		return Applicable
	}
	return Excluded
}

// Statuses resolves every catalog question in one pass. Dependencies always
// precede their dependents in catalog order.
func (e *Evaluator) Statuses(h *response.History) map[string]Status {
	out := make(map[string]Status, e.catalog.Len())
	for _, q := range e.catalog.Questions() {
		out[q.ID] = e.statusFrom(q, h, out)
	}
	return out
}

func (e *Evaluator) statusFrom(q catalog.Question, h *response.History, known map[string]Status) Status {
	if q.Condition == nil || q.Condition.DependsOn == "" {
		return Applicable
	}
	depStatus, ok := known[q.Condition.DependsOn]
	if !ok {
		return e.Status(q, h)
	}
	if depStatus != Applicable {
		return depStatus
	}
	r, ok := h.Get(q.Condition.DependsOn)
	switch {
	case !ok:
		return Deferred
	case r.Skipped:
		return Excluded
	case Satisfies(*q.Condition, r.Value):
		return Applicable
	default:
		return Excluded
	}
}

// Invalidate deletes every response in h whose question is no longer
// applicable and returns the deleted ids in catalog order. Deletions
// cascade through dependency chains.
func (e *Evaluator) Invalidate(h *response.History) []string {
	var removed []string
	for _, q := range e.catalog.Questions() {
		if !h.Has(q.ID) {
			continue
		}
		if e.Status(q, h) != Applicable {
			h.Delete(q.ID)
			removed = append(removed, q.ID)
		}
	}
	return removed
}

// Satisfies evaluates a condition's predicate against the dependency's
// stored value. Multi-select values match Equals and In when any selection
// matches.
func Satisfies(c catalog.Condition, v response.Value) bool {
	switch c.Predicate() {
	case catalog.PredicateHasAnySelection:
		return !v.IsEmpty()
	case catalog.PredicateEquals:
		for _, a := range v.Atoms() {
			if strings.EqualFold(a, c.Equals) {
				return true
			}
		}
		return false
	case catalog.PredicateInSet:
		for _, a := range v.Atoms() {
			for _, want := range c.In {
				if strings.EqualFold(a, want) {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}
