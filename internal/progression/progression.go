// Package progression tracks module completion and advances through modules
// in their fixed order.
package progression

import (
	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/logic"
	"github.com/abhisek/vitalq/internal/response"
)

// Controller decides which module is active.
type Controller struct {
	catalog *catalog.Catalog
	logic   *logic.Evaluator
}

// New creates a Controller.
func New(c *catalog.Catalog, e *logic.Evaluator) *Controller {
	return &Controller{catalog: c, logic: e}
}

// IsModuleComplete reports whether every question in the module is answered,
// skipped or permanently excluded. Deferred questions keep a module open.
func (p *Controller) IsModuleComplete(moduleID string, h *response.History) bool {
	return p.isComplete(moduleID, h, p.logic.Statuses(h))
}

func (p *Controller) isComplete(moduleID string, h *response.History, st map[string]logic.Status) bool {
	for _, q := range p.catalog.QuestionsInModule(moduleID) {
		if h.Has(q.ID) {
			continue
		}
		if st[q.ID] != logic.Excluded {
			return false
		}
	}
	return true
}

// NextModule returns the module following currentID in order. ok is false
// after the last module.
func (p *Controller) NextModule(currentID string) (string, bool) {
	rank := p.catalog.ModuleRank(currentID)
	mods := p.catalog.Modules()
	if rank < 0 || rank+1 >= len(mods) {
		return "", false
	}
	return mods[rank+1].ID, true
}

// CurrentModule returns the first incomplete module, walking forward from
// the first module. ok is false when every module is complete.
func (p *Controller) CurrentModule(h *response.History) (string, bool) {
	st := p.logic.Statuses(h)
	id := p.catalog.FirstModule()
	for {
		if !p.isComplete(id, h, st) {
			return id, true
		}
		next, ok := p.NextModule(id)
		if !ok {
			return "", false
		}
		id = next
	}
}

// Progress summarizes how much of the catalog is resolved.
type Progress struct {
	Answered int
	Skipped  int
	Excluded int
	Total    int
}

// Resolved is the number of questions that will never be asked again.
func (p Progress) Resolved() int {
	return p.Answered + p.Skipped + p.Excluded
}

// Rate is the resolved share of the catalog as a whole percentage, rounded
// down.
func (p Progress) Rate() int {
	if p.Total == 0 {
		return 100
	}
	return p.Resolved() * 100 / p.Total
}

// Progress counts resolved questions across the catalog.
func (p *Controller) Progress(h *response.History) Progress {
	st := p.logic.Statuses(h)
	out := Progress{Total: p.catalog.Len()}
	for _, q := range p.catalog.Questions() {
		r, ok := h.Get(q.ID)
		switch {
		case ok && r.Skipped:
			out.Skipped++
		case ok:
			out.Answered++
		case st[q.ID] == logic.Excluded:
			out.Excluded++
		}
	}
	return out
}

// CompletionRate returns Progress(h).Rate().
func (p *Controller) CompletionRate(h *response.History) int {
	return p.Progress(h).Rate()
}
