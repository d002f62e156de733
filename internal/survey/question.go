package survey

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
)

func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// Question is one of Text, SingleChoice{Options} or MultipleChoice{Options}.
type Question struct {
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

func (q *Question) UnmarshalJSON(b []byte) error {
	type raw Question
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if r.Type == "free_form" {
		r.Type = QuestionText
	}
	*q = Question(r)
	return nil
}

// Validate checks one question; idx is only used in messages.
func (q Question) Validate(idx int) error {
	if strings.TrimSpace(q.Text) == "" {
		return Validationf("question %d: text is required", idx)
	}
	switch q.Type {
	case QuestionText:
		if len(q.Options) > 0 {
			return Validationf("question %d: text questions take no options", idx)
		}
	case QuestionSingleChoice, QuestionMultipleChoice:
		if len(q.Options) == 0 {
			return Validationf("question %d: %s requires at least one option", idx, q.Type)
		}
		for j, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return Validationf("question %d: option %d is empty", idx, j)
			}
		}
	default:
		return Validationf("question %d: unknown type %q", idx, q.Type)
	}
	return nil
}

// ValidateQuestions requires at least one question and validates each.
func ValidateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return Validationf("at least one question is required")
	}
	for i, q := range qs {
		if err := q.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Answer is the record kept per question index in a response.
type Answer struct {
	Question    string `json:"question"`
	Value       any    `json:"answer"`
	OptionIndex *int   `json:"option_index,omitempty"`
}

// UnmarshalJSON also accepts a bare value ("A", 3, ["x","y"]) as shorthand for {"answer": ...}.
func (a *Answer) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '{' {
		type raw Answer
		var r raw
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		*a = Answer(r)
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Answer{Value: v}
	return nil
}

// ReconcileAnswers validates answers against the questionnaire and fills
// missing question text snapshots. Keys must be question indexes.
func ReconcileAnswers(qs []Question, answers map[string]Answer) (map[string]Answer, error) {
	out := make(map[string]Answer, len(answers))
	for k, a := range answers {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= len(qs) {
			return nil, Validationf("answer key %q is not a question index", k)
		}
		q := qs[idx]
		if a.OptionIndex != nil {
			if !q.Type.IsChoice() {
				return nil, Validationf("answer %s: option_index on a text question", k)
			}
			if *a.OptionIndex < 0 || *a.OptionIndex >= len(q.Options) {
				return nil, Validationf("answer %s: option_index %d out of range", k, *a.OptionIndex)
			}
		}
		if a.Question == "" {
			a.Question = q.Text
		}
		out[k] = a
	}
	return out, nil
}
