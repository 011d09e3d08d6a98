package catalog

import (
	"fmt"
	"strings"

	"github.com/abhisek/vitalq/internal/fault"
)

// IntegrityError reports every structural problem found in a catalog
// definition. It is fatal: an engine must not serve traffic with one.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("catalog validation failed:\n  %s", strings.Join(e.Problems, "\n  "))
}

// Kind reports fault.KindCatalogIntegrity.
func (e *IntegrityError) Kind() fault.Kind { return fault.KindCatalogIntegrity }

// validateDefinition checks modules (already sorted by order) and their
// questions. All problems are collected before returning.
func validateDefinition(mods []ModuleDef) error {
	var errs []string

	if len(mods) == 0 {
		errs = append(errs, "catalog declares no modules")
	}

	moduleIDs := make(map[string]bool, len(mods))
	orders := make(map[int]string, len(mods))
	for i, m := range mods {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("module at position %d has an empty id", i))
		}
		if moduleIDs[m.ID] {
			errs = append(errs, fmt.Sprintf("duplicate module ID: %q", m.ID))
		}
		moduleIDs[m.ID] = true
		if other, ok := orders[m.Order]; ok {
			errs = append(errs, fmt.Sprintf("modules %q and %q share order %d", other, m.ID, m.Order))
		}
		orders[m.Order] = m.ID
		if len(m.Questions) == 0 {
			errs = append(errs, fmt.Sprintf("module %q has no questions", m.ID))
		}
	}
	for i := range mods {
		if _, ok := orders[i]; !ok {
			errs = append(errs, fmt.Sprintf("module order is not contiguous: missing order %d", i))
		}
	}

	// Catalog position of every question; the first occurrence wins.
	pos := make(map[string]int)
	owner := make(map[string]string)
	var all []Question
	for _, m := range mods {
		for _, q := range m.Questions {
			if q.ID == "" {
				errs = append(errs, fmt.Sprintf("module %q has a question with an empty id", m.ID))
				continue
			}
			if prev, ok := owner[q.ID]; ok {
				if prev != m.ID {
					errs = append(errs, fmt.Sprintf("question %q belongs to modules %q and %q", q.ID, prev, m.ID))
				} else {
					errs = append(errs, fmt.Sprintf("duplicate question ID: %q", q.ID))
				}
				continue
			}
			owner[q.ID] = m.ID
			pos[q.ID] = len(all)
			all = append(all, q)
		}
	}

	byID := make(map[string]Question, len(all))
	for _, q := range all {
		byID[q.ID] = q
	}

	for _, q := range all {
		errs = append(errs, validateQuestion(q)...)

		if q.Condition == nil {
			continue
		}
		dep := q.Condition.DependsOn
		switch {
		case dep == "":
			errs = append(errs, fmt.Sprintf("question %q has a condition without dependsOn", q.ID))
		case dep == q.ID:
			errs = append(errs, fmt.Sprintf("question %q depends on itself", q.ID))
		default:
			dq, ok := byID[dep]
			if !ok {
				errs = append(errs, fmt.Sprintf("question %q references nonexistent question %q", q.ID, dep))
				break
			}
			if pos[dep] > pos[q.ID] {
				errs = append(errs, fmt.Sprintf("question %q depends on later question %q", q.ID, dep))
			}
			errs = append(errs, validatePredicate(q, dq)...)
		}
	}

	if cyc := findCycle(all); len(cyc) > 0 {
		errs = append(errs, fmt.Sprintf("cycle detected involving questions: %s", strings.Join(cyc, ", ")))
	}

	if len(errs) > 0 {
		return &IntegrityError{Problems: errs}
	}
	return nil
}

func validateQuestion(q Question) []string {
	var errs []string
	prefix := fmt.Sprintf("question %q", q.ID)

	if !q.Type.Valid() {
		errs = append(errs, fmt.Sprintf("%s: unknown type %q", prefix, q.Type))
	}
	if q.Weight < 0 {
		errs = append(errs, fmt.Sprintf("%s: weight must be >= 0, got %f", prefix, q.Weight))
	}
	if q.Type.IsChoice() && len(q.Options) == 0 {
		errs = append(errs, fmt.Sprintf("%s: %s requires options", prefix, q.Type))
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.Value == "" {
			errs = append(errs, fmt.Sprintf("%s: option with empty value", prefix))
		}
		if seen[o.Value] {
			errs = append(errs, fmt.Sprintf("%s: duplicate option value %q", prefix, o.Value))
		}
		seen[o.Value] = true
	}
	if s := q.Scale; s != nil && s.Min >= s.Max {
		errs = append(errs, fmt.Sprintf("%s: scale min (%g) must be below max (%g)", prefix, s.Min, s.Max))
	}
	if t := q.TextCfg; t != nil {
		if t.MinLength < 0 || (t.MaxLength > 0 && t.MinLength > t.MaxLength) {
			errs = append(errs, fmt.Sprintf("%s: invalid text length bounds [%d, %d]", prefix, t.MinLength, t.MaxLength))
		}
	}
	if c := q.Condition; c != nil && c.predicateCount() > 1 {
		errs = append(errs, fmt.Sprintf("%s: condition sets more than one predicate", prefix))
	}
	return errs
}

// validatePredicate checks that a predicate can ever match the answers its
// dependency accepts.
func validatePredicate(q, dep Question) []string {
	c := q.Condition
	want := c.In
	if c.Equals != "" {
		want = []string{c.Equals}
	}
	if len(want) == 0 {
		return nil
	}

	allowed := allowedValues(dep)
	if allowed == nil {
		return nil
	}
	var errs []string
	for _, v := range want {
		if !allowed[v] {
			errs = append(errs, fmt.Sprintf("question %q: predicate value %q is not a possible answer to %q", q.ID, v, dep.ID))
		}
	}
	return errs
}

// allowedValues returns the closed answer set of q, or nil if open-ended.
func allowedValues(q Question) map[string]bool {
	var vals []string
	switch q.Type {
	case TypeYesNo:
		vals = []string{"yes", "no"}
	case TypeYesNoUnsure:
		vals = []string{"yes", "no", "unsure"}
	case TypeFrequency:
		vals = FrequencyValues()
	case TypeMultipleChoice, TypeMultiSelect:
		for _, o := range q.Options {
			vals = append(vals, o.Value)
		}
	default:
		return nil
	}
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// findCycle runs Kahn's algorithm over dependsOn edges and returns the ids
// left with a positive in-degree, in catalog order. Dangling edges are
// ignored here; they are reported separately.
func findCycle(questions []Question) []string {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	inDegree := make(map[string]int, len(questions))
	adj := make(map[string][]string)
	for _, q := range questions {
		if q.Condition != nil && known[q.Condition.DependsOn] {
			inDegree[q.ID]++
			adj[q.Condition.DependsOn] = append(adj[q.Condition.DependsOn], q.ID)
		}
	}

	var queue []string
	for _, q := range questions {
		if inDegree[q.ID] == 0 {
			queue = append(queue, q.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited == len(questions) {
		return nil
	}
	var cyc []string
	for _, q := range questions {
		if inDegree[q.ID] > 0 {
			cyc = append(cyc, q.ID)
		}
	}
	return cyc
}

// FrequencyValues returns the FREQUENCY answer vocabulary in ascending order.
func FrequencyValues() []string {
	return []string{"never", "rarely", "sometimes", "often", "always"}
}
