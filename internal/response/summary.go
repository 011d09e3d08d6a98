package response

import "github.com/abhisek/vitalq/internal/catalog"

// ModuleScore aggregates one module's responses.
type ModuleScore struct {
	ModuleID      string  `json:"moduleId"`
	Answered      int     `json:"answered"`
	Skipped       int     `json:"skipped"`
	RawScore      float64 `json:"rawScore"`
	WeightedScore float64 `json:"weightedScore"`
}

// Summary aggregates a full response set.
type Summary struct {
	Modules       []ModuleScore `json:"modules"`
	Answered      int           `json:"answered"`
	Skipped       int           `json:"skipped"`
	RawScore      float64       `json:"rawScore"`
	WeightedScore float64       `json:"weightedScore"`
}

// Summarize totals per-answer scores by module, in module order. Weighted
// scores multiply each answer's score by its question weight.
func Summarize(c *catalog.Catalog, rs []Response) Summary {
	mods := c.Modules()
	idx := make(map[string]int, len(mods))
	out := Summary{Modules: make([]ModuleScore, len(mods))}
	for i, m := range mods {
		idx[m.ID] = i
		out.Modules[i].ModuleID = m.ID
	}

	for _, r := range rs {
		q, err := c.Question(r.QuestionID)
		if err != nil {
			continue
		}
		ms := &out.Modules[idx[q.ModuleID]]
		if r.Skipped {
			ms.Skipped++
			out.Skipped++
			continue
		}
		ms.Answered++
		ms.RawScore += r.Score
		ms.WeightedScore += r.Score * q.Weight
		out.Answered++
		out.RawScore += r.Score
		out.WeightedScore += r.Score * q.Weight
	}
	return out
}
