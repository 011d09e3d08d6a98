// Package catalog holds the immutable question registry: question
// definitions grouped into ordered body-system modules. A Catalog is built
// once at startup, validated, and shared read-only afterwards.
package catalog

import (
	"slices"
	"sort"

	"github.com/abhisek/vitalq/internal/fault"
)

// ModuleDef declares a module together with its questions in display order.
type ModuleDef struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Order     int        `yaml:"order"`
	Questions []Question `yaml:"questions"`
}

// Definition is the raw, unvalidated form of a catalog.
type Definition struct {
	Modules []ModuleDef `yaml:"modules"`
}

// Catalog is the validated, read-only question registry. It is safe for
// concurrent use without locking.
type Catalog struct {
	modules   []Module
	questions []Question // catalog order: module order, then declaration order
	byID      map[string]int
	moduleIdx map[string]int
	byModule  map[string][]int
	deps      map[string][]string // dependency id -> dependent ids
}

// New validates def and builds a Catalog. Any integrity problem is reported
// as an *IntegrityError listing every violation found.
func New(def Definition) (*Catalog, error) {
	mods := slices.Clone(def.Modules)
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })

	if err := validateDefinition(mods); err != nil {
		return nil, err
	}

	c := &Catalog{
		byID:      make(map[string]int),
		moduleIdx: make(map[string]int, len(mods)),
		byModule:  make(map[string][]int, len(mods)),
		deps:      make(map[string][]string),
	}

	for mi, md := range mods {
		m := Module{ID: md.ID, Name: md.Name, Order: md.Order}
		for _, q := range md.Questions {
			q.ModuleID = md.ID
			if q.Type == TypeLikertScale && q.Scale == nil {
				s := DefaultLikertScale
				q.Scale = &s
			}
			idx := len(c.questions)
			c.questions = append(c.questions, q)
			c.byID[q.ID] = idx
			c.byModule[md.ID] = append(c.byModule[md.ID], idx)
			m.QuestionIDs = append(m.QuestionIDs, q.ID)
			if q.Condition != nil {
				c.deps[q.Condition.DependsOn] = append(c.deps[q.Condition.DependsOn], q.ID)
			}
		}
		c.modules = append(c.modules, m)
		c.moduleIdx[md.ID] = mi
	}

	return c, nil
}

// Question returns a question by id.
func (c *Catalog) Question(id string) (Question, error) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, fault.NotFound("catalog", "question", id)
	}
	return c.questions[i], nil
}

// Has reports whether id is a known question.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Index returns the catalog-order position of a question, or -1.
func (c *Catalog) Index(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// QuestionsInModule returns a module's questions in declaration order.
func (c *Catalog) QuestionsInModule(moduleID string) []Question {
	idxs := c.byModule[moduleID]
	out := make([]Question, len(idxs))
	for i, idx := range idxs {
		out[i] = c.questions[idx]
	}
	return out
}

// Modules returns all modules in ascending order.
func (c *Catalog) Modules() []Module {
	return slices.Clone(c.modules)
}

// Module returns a module by id.
func (c *Catalog) Module(id string) (Module, error) {
	i, ok := c.moduleIdx[id]
	if !ok {
		return Module{}, fault.NotFound("catalog", "module", id)
	}
	return c.modules[i], nil
}

// ModuleRank returns the position of a module in the fixed order, or -1.
func (c *Catalog) ModuleRank(id string) int {
	if i, ok := c.moduleIdx[id]; ok {
		return i
	}
	return -1
}

// FirstModule returns the id of the lowest-ordered module.
func (c *Catalog) FirstModule() string {
	if len(c.modules) == 0 {
		return ""
	}
	return c.modules[0].ID
}

// Questions returns every question in catalog order.
func (c *Catalog) Questions() []Question {
	return slices.Clone(c.questions)
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Dependents returns ids of questions whose condition depends on id.
func (c *Catalog) Dependents(id string) []string {
	return slices.Clone(c.deps[id])
}
