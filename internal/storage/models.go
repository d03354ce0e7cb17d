package storage

import "strings"

// Subject is the coarse domain tag attached to every extracted record.
type Subject string

const (
	SubjectPhysics     Subject = "Physics"
	SubjectChemistry   Subject = "Chemistry"
	SubjectMathematics Subject = "Mathematics"
	SubjectBiology     Subject = "Biology"
	SubjectUnknown     Subject = "Unknown"

	// SubjectAll is the retrieval wildcard. It is never stored on a record.
	SubjectAll Subject = "All"
)

// ParseSubject maps a subject name to its canonical form, ignoring case.
// An empty name means SubjectAll. Other names are kept as given.
func ParseSubject(name string) Subject {
	name = strings.TrimSpace(name)
	if name == "" {
		return SubjectAll
	}
	for _, s := range []Subject{SubjectPhysics, SubjectChemistry, SubjectMathematics, SubjectBiology, SubjectUnknown, SubjectAll} {
		if strings.EqualFold(name, string(s)) {
			return s
		}
	}
	return Subject(name)
}

// Matches reports whether a record tagged with s passes a filter for want.
func (s Subject) Matches(want Subject) bool {
	return want == SubjectAll || s == want
}

// BoundingBox is an axis-aligned rectangle in page coordinates with the
// origin at the top-left corner of the page.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (b BoundingBox) Width() float64  { return b.X1 - b.X0 }
func (b BoundingBox) Height() float64 { return b.Y1 - b.Y0 }

// Rect is the {x, y, width, height} form of a box used in responses.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) Rect() Rect {
	return Rect{X: b.X0, Y: b.Y0, Width: b.Width(), Height: b.Height()}
}

// QuestionCandidate is a text span that looks like a question.
type QuestionCandidate struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`            // trimmed, at least the minimum candidate length
	Page           int     `json:"page"`            // 1-based
	SourceDocument string  `json:"source_document"` // file name
	Subject        Subject `json:"subject"`
	WordCount      int     `json:"word_count"`
	ExtractionRule int     `json:"extraction_rule"` // index of the matching pattern
}

// ImageRecord is an image extracted from a page and written to the content store.
type ImageRecord struct {
	ID             string      `json:"id"`
	Path           string      `json:"path"`    // content store path
	Caption        string      `json:"caption"` // nearby words, may be empty
	PageText       string      `json:"page_text"`
	Page           int         `json:"page"`
	SourceDocument string      `json:"source_document"`
	Subject        Subject     `json:"subject"`
	Box            BoundingBox `json:"bbox"`
}

// Association links a question to an image on the same page whose caption
// is semantically close to the question text.
type Association struct {
	QuestionID      string  `json:"question_id"`
	ImageID         string  `json:"image_id"`
	SimilarityScore float64 `json:"similarity_score"` // strictly above the association threshold
	Kind            string  `json:"kind"`
}

// AssociationSemantic is the only association kind produced today.
const AssociationSemantic = "semantic"

// Stats summarises the store contents.
type Stats struct {
	TotalQuestions      int             `json:"total_questions"`
	TotalImages         int             `json:"total_images"`
	TotalAssociations   int             `json:"total_associations"`
	QuestionsWithImages int             `json:"questions_with_images"`
	SubjectDistribution map[Subject]int `json:"subject_distribution"`
}

// Batch is everything one document contributes to the store. Vectors are
// positionally aligned with the records they embed.
type Batch struct {
	Questions       []QuestionCandidate
	QuestionVectors [][]float32
	Images          []ImageRecord
	ImageVectors    [][]float32
	Associations    []Association
}

// Empty reports whether the batch carries no records.
func (b Batch) Empty() bool {
	return len(b.Questions) == 0 && len(b.Images) == 0
}
