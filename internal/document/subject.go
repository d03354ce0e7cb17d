package document

import (
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// subjectCues are checked in order; the first cue found wins.
var subjectCues = []struct {
	cue     string
	subject storage.Subject
}{
	{"physics", storage.SubjectPhysics},
	{"chemistry", storage.SubjectChemistry},
	{"math", storage.SubjectMathematics},
	{"biology", storage.SubjectBiology},
}

// DetectSubject returns the subject named by the first cue present in text,
// matched case-insensitively.
func DetectSubject(text string) (storage.Subject, bool) {
	lower := strings.ToLower(text)
	for _, c := range subjectCues {
		if strings.Contains(lower, c.cue) {
			return c.subject, true
		}
	}
	return "", false
}

// SubjectTracker carries the most recent subject cue forward across the
// pages of one document.
type SubjectTracker struct {
	current storage.Subject
}

func NewSubjectTracker() *SubjectTracker {
	return &SubjectTracker{current: storage.SubjectUnknown}
}

// Observe updates the tracker from a page and returns that page's subject.
func (t *SubjectTracker) Observe(pageText string) storage.Subject {
	if s, ok := DetectSubject(pageText); ok {
		t.current = s
	}
	return t.current
}
