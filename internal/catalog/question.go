package catalog

// QuestionType is the answer format of a question.
type QuestionType string

const (
	TypeLikertScale    QuestionType = "LIKERT_SCALE"
	TypeYesNo          QuestionType = "YES_NO"
	TypeYesNoUnsure    QuestionType = "YES_NO_UNSURE"
	TypeFrequency      QuestionType = "FREQUENCY"
	TypeMultiSelect    QuestionType = "MULTI_SELECT"
	TypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TypeText           QuestionType = "TEXT"
	TypeNumberInput    QuestionType = "NUMBER_INPUT"
)

// AllTypes returns every supported question type.
func AllTypes() []QuestionType {
	return []QuestionType{
		TypeLikertScale,
		TypeYesNo,
		TypeYesNoUnsure,
		TypeFrequency,
		TypeMultiSelect,
		TypeMultipleChoice,
		TypeText,
		TypeNumberInput,
	}
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	for _, k := range AllTypes() {
		if t == k {
			return true
		}
	}
	return false
}

// IsChoice reports whether answers are picked from Options.
func (t QuestionType) IsChoice() bool {
	return t == TypeMultipleChoice || t == TypeMultiSelect
}

// Option is a single value/label pair for choice questions.
type Option struct {
	Value string  `yaml:"value" json:"value"`
	Label string  `yaml:"label" json:"label"`
	Score float64 `yaml:"score,omitempty" json:"score,omitempty"`
}

// ScaleConfig bounds LIKERT_SCALE and NUMBER_INPUT answers.
type ScaleConfig struct {
	Min    float64  `yaml:"min" json:"min"`
	Max    float64  `yaml:"max" json:"max"`
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// DefaultLikertScale is used when a LIKERT_SCALE question declares no scale.
var DefaultLikertScale = ScaleConfig{
	Min:    1,
	Max:    5,
	Labels: []string{"Very poor", "Poor", "Fair", "Good", "Excellent"},
}

// TextConfig bounds TEXT answers.
type TextConfig struct {
	MinLength   int      `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength   int      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Suggestions []string `yaml:"suggestions,omitempty" json:"suggestions,omitempty"`
}

// PredicateKind selects how a Condition is evaluated.
type PredicateKind string

const (
	PredicateAlways          PredicateKind = "always"
	PredicateEquals          PredicateKind = "equals"
	PredicateInSet           PredicateKind = "in"
	PredicateHasAnySelection PredicateKind = "has_any_selection"
)

// Condition makes a question applicable only when an earlier question's
// answer satisfies a predicate. Exactly one of Equals, In or HasAnySelection
// is set; a Condition with none of them always holds once DependsOn is answered.
type Condition struct {
	DependsOn       string   `yaml:"dependsOn" json:"dependsOnQuestionId"`
	Equals          string   `yaml:"equals,omitempty" json:"equals,omitempty"`
	In              []string `yaml:"in,omitempty" json:"in,omitempty"`
	HasAnySelection bool     `yaml:"hasAnySelection,omitempty" json:"hasAnySelection,omitempty"`
}

// Predicate reports which predicate the condition uses.
func (c Condition) Predicate() PredicateKind {
	switch {
	case c.HasAnySelection:
		return PredicateHasAnySelection
	case len(c.In) > 0:
		return PredicateInSet
	case c.Equals != "":
		return PredicateEquals
	default:
		return PredicateAlways
	}
}

func (c Condition) predicateCount() int {
	n := 0
	if c.HasAnySelection {
		n++
	}
	if len(c.In) > 0 {
		n++
	}
	if c.Equals != "" {
		n++
	}
	return n
}

// Question is a single immutable question definition.
type Question struct {
	ID        string       `yaml:"id" json:"id"`
	ModuleID  string       `yaml:"-" json:"moduleId"`
	Category  string       `yaml:"category" json:"category"`
	Text      string       `yaml:"text" json:"text"`
	Help      string       `yaml:"help,omitempty" json:"help,omitempty"`
	Type      QuestionType `yaml:"type" json:"type"`
	Weight    float64      `yaml:"weight" json:"weight"`
	Required  bool         `yaml:"required,omitempty" json:"required"`
	Options   []Option     `yaml:"options,omitempty" json:"options,omitempty"`
	Scale     *ScaleConfig `yaml:"scale,omitempty" json:"scaleConfig,omitempty"`
	TextCfg   *TextConfig  `yaml:"textConfig,omitempty" json:"textConfig,omitempty"`
	Condition *Condition   `yaml:"condition,omitempty" json:"conditionalLogic,omitempty"`
}

// ScaleOrDefault returns the question's scale, falling back to
// DefaultLikertScale for LIKERT_SCALE questions. Returns nil when the
// question is unbounded.
func (q Question) ScaleOrDefault() *ScaleConfig {
	if q.Scale != nil {
		return q.Scale
	}
	if q.Type == TypeLikertScale {
		s := DefaultLikertScale
		return &s
	}
	return nil
}

// Option returns the option with the given value.
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// Module is an ordered group of questions covering one body system.
type Module struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Order       int      `json:"order"`
	QuestionIDs []string `json:"questionIds"`
}
