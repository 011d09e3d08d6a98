package response

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/fault"
)

// Constraint names the rule a rejected answer violated.
type Constraint string

const (
	ConstraintType       Constraint = "type"
	ConstraintInteger    Constraint = "integer"
	ConstraintScale      Constraint = "scale_bounds"
	ConstraintOption     Constraint = "option_membership"
	ConstraintDuplicate  Constraint = "duplicate_selection"
	ConstraintTextLength Constraint = "text_length"
	ConstraintRequired   Constraint = "required"
)

// ValidationError reports a malformed or out-of-range answer.
type ValidationError struct {
	QuestionID string
	Constraint Constraint
	Detail     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer for %q (%s): %s", e.QuestionID, e.Constraint, e.Detail)
}

// Kind reports fault.KindValidation.
func (e *ValidationError) Kind() fault.Kind { return fault.KindValidation }

func invalid(q catalog.Question, c Constraint, format string, args ...any) *ValidationError {
	return &ValidationError{QuestionID: q.ID, Constraint: c, Detail: fmt.Sprintf(format, args...)}
}

var yesNoValues = map[catalog.QuestionType][]string{
	catalog.TypeYesNo:       {"yes", "no"},
	catalog.TypeYesNoUnsure: {"yes", "no", "unsure"},
}

// Normalize validates v against q's type constraints and returns the
// canonical form: trimmed, lower-cased vocabulary words and whole numbers
// for scales.
func Normalize(q catalog.Question, v Value) (Value, error) {
	switch q.Type {
	case catalog.TypeLikertScale:
		n, err := numeric(q, v)
		if err != nil {
			return Value{}, err
		}
		if n != math.Trunc(n) {
			return Value{}, invalid(q, ConstraintInteger, "scale answers must be whole numbers, got %g", n)
		}
		if err := inScale(q, n); err != nil {
			return Value{}, err
		}
		return Number(n), nil

	case catalog.TypeNumberInput:
		n, err := numeric(q, v)
		if err != nil {
			return Value{}, err
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Value{}, invalid(q, ConstraintType, "number must be finite")
		}
		if err := inScale(q, n); err != nil {
			return Value{}, err
		}
		return Number(n), nil

	case catalog.TypeYesNo, catalog.TypeYesNoUnsure:
		s, err := word(q, v)
		if err != nil {
			return Value{}, err
		}
		if !contains(yesNoValues[q.Type], s) {
			return Value{}, invalid(q, ConstraintOption, "%q is not one of %s", s, strings.Join(yesNoValues[q.Type], ", "))
		}
		return Text(s), nil

	case catalog.TypeFrequency:
		s, err := word(q, v)
		if err != nil {
			return Value{}, err
		}
		if _, ok := frequencyScores[s]; !ok {
			return Value{}, invalid(q, ConstraintOption, "%q is not one of %s", s, strings.Join(catalog.FrequencyValues(), ", "))
		}
		return Text(s), nil

	case catalog.TypeMultipleChoice:
		s, ok := v.AsText()
		if !ok {
			return Value{}, invalid(q, ConstraintType, "expected a single option, got %s", v.Kind())
		}
		s = strings.TrimSpace(s)
		if _, ok := q.Option(s); !ok {
			return Value{}, invalid(q, ConstraintOption, "%q is not a listed option", s)
		}
		return Text(s), nil

	case catalog.TypeMultiSelect:
		sel, ok := v.AsChoices()
		if !ok {
			// A single string is accepted as a one-item selection.
			s, isText := v.AsText()
			if !isText {
				return Value{}, invalid(q, ConstraintType, "expected a list of options, got %s", v.Kind())
			}
			sel = []string{s}
		}
		seen := make(map[string]bool, len(sel))
		out := make([]string, 0, len(sel))
		for _, s := range sel {
			s = strings.TrimSpace(s)
			if _, ok := q.Option(s); !ok {
				return Value{}, invalid(q, ConstraintOption, "%q is not a listed option", s)
			}
			if seen[s] {
				return Value{}, invalid(q, ConstraintDuplicate, "%q selected more than once", s)
			}
			seen[s] = true
			out = append(out, s)
		}
		return Choices(out...), nil

	case catalog.TypeText:
		s, ok := v.AsText()
		if !ok {
			return Value{}, invalid(q, ConstraintType, "expected text, got %s", v.Kind())
		}
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if q.Required && n == 0 {
			return Value{}, invalid(q, ConstraintRequired, "an answer is required")
		}
		if tc := q.TextCfg; tc != nil {
			if n < tc.MinLength && (n > 0 || q.Required) {
				return Value{}, invalid(q, ConstraintTextLength, "must be at least %d characters, got %d", tc.MinLength, n)
			}
			if tc.MaxLength > 0 && n > tc.MaxLength {
				return Value{}, invalid(q, ConstraintTextLength, "must be at most %d characters, got %d", tc.MaxLength, n)
			}
		}
		return Text(s), nil

	default:
		return Value{}, invalid(q, ConstraintType, "unsupported question type %q", q.Type)
	}
}

func numeric(q catalog.Question, v Value) (float64, error) {
	n, ok := v.AsNumber()
	if !ok {
		return 0, invalid(q, ConstraintType, "expected a number, got %s", v.Kind())
	}
	return n, nil
}

func word(q catalog.Question, v Value) (string, error) {
	s, ok := v.AsText()
	if !ok {
		return "", invalid(q, ConstraintType, "expected text, got %s", v.Kind())
	}
	return strings.ToLower(strings.TrimSpace(s)), nil
}

func inScale(q catalog.Question, n float64) error {
	s := q.ScaleOrDefault()
	if s == nil {
		return nil
	}
	if n < s.Min || n > s.Max {
		return invalid(q, ConstraintScale, "%g is outside [%g, %g]", n, s.Min, s.Max)
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
