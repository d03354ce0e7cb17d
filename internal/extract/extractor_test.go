package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

func texts(cands []storage.QuestionCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Text
	}
	return out
}

func TestExtract_NumberedItems(t *testing.T) {
	text := "1. Define momentum and state the law of conservation of linear momentum clearly. " +
		"2. State Newton's second law of motion and derive the equation F equals ma."

	got := NewExtractor(nil).Extract(text, 4, "mechanics.pdf", storage.SubjectPhysics)
	require.Len(t, got, 2)

	assert.Equal(t, "1. Define momentum and state the law of conservation of linear momentum clearly.", got[0].Text)
	assert.Equal(t, "2. State Newton's second law of motion and derive the equation F equals ma.", got[1].Text)
	for _, c := range got {
		assert.Equal(t, 4, c.Page)
		assert.Equal(t, "mechanics.pdf", c.SourceDocument)
		assert.Equal(t, storage.SubjectPhysics, c.Subject)
		assert.Equal(t, 0, c.ExtractionRule)
	}
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestExtract_StopsAtBlankLine(t *testing.T) {
	text := "1. A projectile is launched\nat an angle of thirty degrees\nwith speed twenty metres per second.\n\nNotes follow here."

	got := NewExtractor(nil).Extract(text, 1, "a.pdf", storage.SubjectPhysics)
	require.Len(t, got, 1)
	assert.Equal(t, "1. A projectile is launched\nat an angle of thirty degrees\nwith speed twenty metres per second.", got[0].Text)
	assert.Equal(t, 17, got[0].WordCount)
}

func TestExtract_RuleOrderAndOverlap(t *testing.T) {
	// "Q1." also satisfies the plain numbered shape, so both rules report it.
	text := "Q1. A block of mass two kilograms slides down a frictionless incline; find its acceleration."

	got := NewExtractor(nil).Extract(text, 2, "a.pdf", storage.SubjectPhysics)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ExtractionRule)
	assert.True(t, strings.HasPrefix(got[0].Text, "1. A block"))
	assert.Equal(t, 1, got[1].ExtractionRule)
	assert.True(t, strings.HasPrefix(got[1].Text, "Q1. A block"))
}

func TestExtract_ParenthesizedAndExample(t *testing.T) {
	text := "(1) Calculate the wavelength of light emitted when an electron drops between levels. " +
		"(2) Explain why the hydrogen spectrum is discrete and not continuous at all."

	got := NewExtractor(nil).Extract(text, 1, "a.pdf", storage.SubjectChemistry)
	assert.Equal(t, []string{
		"(1) Calculate the wavelength of light emitted when an electron drops between levels.",
		"(2) Explain why the hydrogen spectrum is discrete and not continuous at all.",
	}, texts(got))
	for _, c := range got {
		assert.Equal(t, 2, c.ExtractionRule)
	}

	example := "EXAMPLE 3 A car accelerates uniformly from rest to twenty metres per second in five seconds"
	got = NewExtractor(nil).Extract(example, 1, "a.pdf", storage.SubjectPhysics)
	require.Len(t, got, 1)
	assert.Equal(t, example, got[0].Text)
	assert.Equal(t, 3, got[0].ExtractionRule)
}

func TestExtract_MinimumLength(t *testing.T) {
	ex := NewExtractor(nil)

	exact := "1. " + strings.Repeat("a", 47)
	require.Len(t, exact, 50)
	got := ex.Extract(exact+"\n\n", 1, "a.pdf", storage.SubjectUnknown)
	require.Len(t, got, 1)
	assert.Equal(t, exact, got[0].Text)

	short := "1. " + strings.Repeat("a", 46)
	assert.Empty(t, ex.Extract(short, 1, "a.pdf", storage.SubjectUnknown))

	// Padding does not count towards the length.
	assert.Empty(t, ex.Extract("   "+short+"      ", 1, "a.pdf", storage.SubjectUnknown))
}

func TestExtract_NoMatches(t *testing.T) {
	assert.Empty(t, NewExtractor(nil).Extract("", 1, "a.pdf", storage.SubjectUnknown))
	assert.Empty(t, NewExtractor(nil).Extract("A page with prose and no question markers at all, long enough.", 1, "a.pdf", storage.SubjectUnknown))
}

type failingMatcher struct{}

func (failingMatcher) Name() string { return "failing" }
func (failingMatcher) Match(string) ([]string, error) {
	return []string{strings.Repeat("x", 60)}, errors.New("match timeout")
}

func TestExtract_MatcherErrorKeepsPartialResults(t *testing.T) {
	ex := NewExtractorWith([]Matcher{failingMatcher{}}, DefaultMinLength, nil)
	got := ex.Extract("anything", 1, "a.pdf", storage.SubjectUnknown)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].WordCount)
}

func TestNewPatternMatcher_InvalidExpression(t *testing.T) {
	_, err := NewPatternMatcher("bad", `(`)
	assert.Error(t, err)
}
