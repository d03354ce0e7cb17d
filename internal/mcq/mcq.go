// Package mcq turns question candidates into validated multiple-choice
// questions using a chat model.
package mcq

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

var (
	// ErrInvalidReply is returned when a model reply does not have the
	// question, four options and answer letter in the expected layout.
	ErrInvalidReply = errors.New("invalid MCQ reply")

	// ErrCandidateTooShort means the candidate was not sent to the model.
	ErrCandidateTooShort = errors.New("candidate text too short")
)

// Letters are the option labels in order.
var Letters = [4]string{"A", "B", "C", "D"}

// MCQ is a validated multiple-choice question.
type MCQ struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// DefaultPromptChars is how much candidate text goes into a prompt.
const DefaultPromptChars = 500

const promptTemplate = `
You are an expert JEE %s tutor. Based on the following question/content from a JEE preparation material, generate one high-quality multiple-choice question with exactly 4 options.

Content:
%s

Requirements:
- Create a challenging question suitable for JEE Main level
- Provide exactly 4 options labeled A, B, C, D
- Make options plausible but only one correct
- Test conceptual understanding and problem-solving
- If the content contains a specific question, adapt it into MCQ format
- If the content is explanatory, create a question that tests the concept

Format your response EXACTLY like this:
Q: [Your question here]
A. [Option A]
B. [Option B]
C. [Option C]
D. [Option D]
Answer: [A/B/C/D]
`

// BuildPrompt embeds the candidate's subject and at most maxChars runes of its text.
func BuildPrompt(q storage.QuestionCandidate, maxChars int) string {
	subject := string(q.Subject)
	if q.Subject == storage.SubjectUnknown {
		subject = ""
	}
	return fmt.Sprintf(promptTemplate, subject, truncate(q.Text, maxChars))
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	stemPattern   = regexp.MustCompile(`(?s)Q:\s*(.*?)\n\s*A\.`)
	answerPattern = regexp.MustCompile(`Answer:\s*([ABCD])`)

	// Each option runs from its marker at the start of a line to the next
	// marker; D ends at the answer line.
	optionPatterns = [4]*regexp.Regexp{
		regexp.MustCompile(`(?ms)^\s*A\.\s*(.*?)\n\s*B\.`),
		regexp.MustCompile(`(?ms)^\s*B\.\s*(.*?)\n\s*C\.`),
		regexp.MustCompile(`(?ms)^\s*C\.\s*(.*?)\n\s*D\.`),
		regexp.MustCompile(`(?ms)^\s*D\.\s*(.*?)\n\s*Answer:`),
	}
)

// Parse reads a reply in the prompt's layout. Only the first line of each
// option is kept. Any missing part rejects the whole reply.
func Parse(reply string) (*MCQ, error) {
	reply = strings.TrimSpace(reply)

	m := stemPattern.FindStringSubmatch(reply)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return nil, fmt.Errorf("%w: no question", ErrInvalidReply)
	}
	out := &MCQ{Question: strings.TrimSpace(m[1])}

	for i, p := range optionPatterns {
		om := p.FindStringSubmatch(reply)
		if om == nil {
			return nil, fmt.Errorf("%w: option %s missing", ErrInvalidReply, Letters[i])
		}
		first, _, _ := strings.Cut(strings.TrimSpace(om[1]), "\n")
		first = strings.TrimSpace(first)
		if first == "" {
			return nil, fmt.Errorf("%w: option %s empty", ErrInvalidReply, Letters[i])
		}
		out.Options = append(out.Options, first)
	}

	am := answerPattern.FindStringSubmatch(reply)
	if am == nil {
		return nil, fmt.Errorf("%w: no answer letter", ErrInvalidReply)
	}
	out.Answer = am[1]

	return out, nil
}
