package response

import "github.com/abhisek/vitalq/internal/catalog"

var frequencyScores = map[string]float64{
	"never":     0,
	"rarely":    1,
	"sometimes": 2,
	"often":     3,
	"always":    4,
}

// Score maps a normalized answer to its symptom score. Higher is worse.
// MULTI_SELECT, TEXT and NUMBER_INPUT carry no derived score.
func Score(q catalog.Question, v Value) float64 {
	switch q.Type {
	case catalog.TypeLikertScale:
		n, _ := v.AsNumber()
		s := q.ScaleOrDefault()
		return s.Max - n
	case catalog.TypeYesNo, catalog.TypeYesNoUnsure:
		if s, _ := v.AsText(); s == "yes" {
			return 2
		}
		return 0
	case catalog.TypeFrequency:
		s, _ := v.AsText()
		return frequencyScores[s]
	case catalog.TypeMultipleChoice:
		s, _ := v.AsText()
		if o, ok := q.Option(s); ok {
			return o.Score
		}
		return 0
	case catalog.TypeMultiSelect, catalog.TypeText, catalog.TypeNumberInput:
		return 0
	default:
		return 0
	}
}
