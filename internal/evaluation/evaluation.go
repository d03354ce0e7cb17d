// Package evaluation scores a user's answers to generated questions.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// ErrInvalidInput is returned for empty or mismatched inputs.
var ErrInvalidInput = errors.New("invalid input")

// Question is the part of a generated question needed for scoring.
type Question struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Subject  storage.Subject `json:"subject,omitempty"`
}

// Detail is the outcome for one question.
type Detail struct {
	Question      string          `json:"question"`
	CorrectAnswer string          `json:"correct_answer"`
	UserAnswer    string          `json:"user_answer"`
	IsCorrect     bool            `json:"is_correct"`
	Subject       storage.Subject `json:"subject"`
}

// Result is the score over all questions.
type Result struct {
	Total      int      `json:"total"`
	Score      int      `json:"score"`
	Percentage float64  `json:"percentage"`
	Details    []Detail `json:"details"`
}

// Score compares answers position by position, ignoring case and
// surrounding whitespace. The percentage is rounded to two decimals.
func Score(questions []Question, answers []string) (*Result, error) {
	if len(questions) == 0 || len(answers) == 0 {
		return nil, fmt.Errorf("%w: questions and answers are required", ErrInvalidInput)
	}
	if len(questions) != len(answers) {
		return nil, fmt.Errorf("%w: %d questions but %d answers", ErrInvalidInput, len(questions), len(answers))
	}

	res := &Result{Total: len(questions), Details: make([]Detail, 0, len(questions))}
	for i, q := range questions {
		correct := normalize(q.Answer)
		given := normalize(answers[i])
		ok := correct == given
		if ok {
			res.Score++
		}

		subject := q.Subject
		if subject == "" {
			subject = storage.SubjectUnknown
		}
		res.Details = append(res.Details, Detail{
			Question:      q.Question,
			CorrectAnswer: correct,
			UserAnswer:    given,
			IsCorrect:     ok,
			Subject:       subject,
		})
	}

	res.Percentage = math.Round(10000*float64(res.Score)/float64(res.Total)) / 100
	return res, nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
