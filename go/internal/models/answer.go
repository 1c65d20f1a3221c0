package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnswerKind tags the variant carried by an Answer.
type AnswerKind string

const (
	AnswerText      AnswerKind = "TEXT"
	AnswerChoiceSet AnswerKind = "CHOICE_SET"
	AnswerNumber    AnswerKind = "NUMBER"
)

// Answer is a tagged variant over the answer shapes a task can collect:
// free text, a set of selected choices, or a number. On the wire it stays
// the raw union form (string, string array, or number) so payloads remain
// interoperable with other clients.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Choices []string
	Number  float64
}

// TextAnswer builds a free-text answer.
func TextAnswer(s string) Answer {
	return Answer{Kind: AnswerText, Text: s}
}

// ChoiceSetAnswer builds a multi-choice answer.
func ChoiceSetAnswer(choices ...string) Answer {
	return Answer{Kind: AnswerChoiceSet, Choices: choices}
}

// NumberAnswer builds a numeric answer.
func NumberAnswer(n float64) Answer {
	return Answer{Kind: AnswerNumber, Number: n}
}

// MarshalJSON emits the raw union form.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerChoiceSet:
		if a.Choices == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(a.Choices)
	case AnswerNumber:
		return json.Marshal(a.Number)
	default:
		return nil, fmt.Errorf("marshal answer: unknown kind %q", a.Kind)
	}
}

// UnmarshalJSON maps the union form back onto the variant: JSON string to
// TEXT, array to CHOICE_SET, number to NUMBER.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*a = Answer{Kind: AnswerText}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal text answer: %w", err)
		}
		*a = TextAnswer(s)
	case '[':
		var choices []string
		if err := json.Unmarshal(data, &choices); err != nil {
			return fmt.Errorf("unmarshal choice-set answer: %w", err)
		}
		*a = ChoiceSetAnswer(choices...)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unmarshal numeric answer: %w", err)
		}
		*a = NumberAnswer(n)
	}
	return nil
}

// Normalize returns the comparison key for consensus checks: text is
// case/whitespace-insensitive, choice sets are order-insensitive, numbers
// compare by value. Keys of different kinds never collide.
func (a Answer) Normalize() string {
	switch a.Kind {
	case AnswerChoiceSet:
		normalized := make([]string, len(a.Choices))
		for i, c := range a.Choices {
			normalized[i] = strings.ToLower(strings.TrimSpace(c))
		}
		sort.Strings(normalized)
		return "c:" + strings.Join(normalized, "\x1f")
	case AnswerNumber:
		return "n:" + strconv.FormatFloat(a.Number, 'g', -1, 64)
	default:
		return "t:" + strings.ToLower(strings.TrimSpace(a.Text))
	}
}

// Equal reports whether two answers agree under normalization.
func (a Answer) Equal(other Answer) bool {
	return a.Normalize() == other.Normalize()
}
