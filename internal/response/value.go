package response

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindNumber
	KindText
	KindChoices
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindChoices:
		return "choices"
	default:
		return "none"
	}
}

// Value is an answer payload: a number, a string, a list of selections,
// or nothing (adaptive skips).
type Value struct {
	kind    ValueKind
	num     float64
	text    string
	choices []string
}

// None returns the empty value.
func None() Value { return Value{} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Choices returns a selection list. A nil list is normalized to empty.
func Choices(vals ...string) Value {
	if vals == nil {
		vals = []string{}
	}
	return Value{kind: KindChoices, choices: slices.Clone(vals)}
}

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsText returns the string payload.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsChoices returns a copy of the selection payload.
func (v Value) AsChoices() ([]string, bool) {
	return slices.Clone(v.choices), v.kind == KindChoices
}

// IsEmpty reports whether v carries no selection: none, an empty string,
// or an empty list. Numbers are never empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNumber:
		return false
	case KindText:
		return v.text == ""
	case KindChoices:
		return len(v.choices) == 0
	default:
		return true
	}
}

// Atoms returns the value as comparable strings: one element for numbers
// and text, every selection for lists, nothing for none.
func (v Value) Atoms() []string {
	switch v.kind {
	case KindNumber:
		return []string{strconv.FormatFloat(v.num, 'f', -1, 64)}
	case KindText:
		return []string{v.text}
	case KindChoices:
		return slices.Clone(v.choices)
	default:
		return nil
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindChoices:
		return slices.Equal(v.choices, o.choices)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindChoices:
		return fmt.Sprintf("%v", v.choices)
	default:
		return "<none>"
	}
}

// FromAny converts a decoded JSON value into a Value. Booleans map to
// "yes"/"no" for convenience.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return None(), nil
	case bool:
		if t {
			return Text("yes"), nil
		}
		return Text("no"), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case string:
		return Text(t), nil
	case []string:
		return Choices(t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("selection %d is %T, want string", i, e)
			}
			out = append(out, s)
		}
		return Choices(out...), nil
	default:
		return Value{}, fmt.Errorf("unsupported answer payload %T", x)
	}
}

// MarshalJSON encodes the payload as a JSON number, string, array or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindChoices:
		return json.Marshal(v.choices)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any payload accepted by FromAny.
func (v *Value) UnmarshalJSON(b []byte) error {
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	parsed, err := FromAny(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
