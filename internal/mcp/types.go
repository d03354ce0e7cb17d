// Package mcp exposes the question bank as Model Context Protocol tools.
package mcp

// SearchQuestionsInput defines the input parameters for the search_questions tool.
type SearchQuestionsInput struct {
	// Query is matched semantically against stored questions. When empty,
	// questions are listed by subject in ingestion order.
	Query string `json:"query,omitempty" jsonschema:"Topic or question text to search for"`
	// Subject restricts results (Physics, Chemistry, Mathematics, Biology, Unknown or All).
	Subject string `json:"subject,omitempty" jsonschema:"Subject filter; All or empty matches every subject"`
	// MaxResults is the maximum number of questions to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of questions to return (default 5, at most 50)"`
}

// SearchQuestionsOutput contains the search results.
type SearchQuestionsOutput struct {
	Results []QuestionResult `json:"results"`
	// Message provides informational context (e.g., "No matching questions found").
	Message string `json:"message,omitempty"`
}

// QuestionResult is one stored question candidate.
type QuestionResult struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Subject        string `json:"subject"`
	Page           int    `json:"page"`
	SourceDocument string `json:"source_document"`
	// ImageCaption is set when an image on the same page is linked to the question.
	ImageCaption string `json:"image_caption,omitempty"`
	HasImage     bool   `json:"has_image"`
}

// SearchFiguresInput defines the input parameters for the search_figures tool.
type SearchFiguresInput struct {
	Query      string `json:"query" jsonschema:"Words to match against figure captions and the text of their page"`
	Subject    string `json:"subject,omitempty" jsonschema:"Subject filter; All or empty matches every subject"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of figures to return (default 5, at most 50)"`
}

// SearchFiguresOutput contains the matching figures.
type SearchFiguresOutput struct {
	Results []FigureResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// FigureResult is one stored image. The file stays on the server; Path is
// where the content store wrote it.
type FigureResult struct {
	ID             string `json:"id"`
	Caption        string `json:"caption"`
	Subject        string `json:"subject"`
	Page           int    `json:"page"`
	SourceDocument string `json:"source_document"`
	Path           string `json:"path"`
}

// GenerateMCQsInput defines the input parameters for the generate_mcqs tool.
type GenerateMCQsInput struct {
	Subject string `json:"subject,omitempty" jsonschema:"Subject to draw questions from; All or empty for every subject"`
	Count   int    `json:"count,omitempty" jsonschema:"Number of questions to generate (default 10, at most 25)"`
	Topic   string `json:"topic,omitempty" jsonschema:"Optional topic used to pick source questions"`
}

// GenerateMCQsOutput contains the generated questions.
type GenerateMCQsOutput struct {
	Questions []MCQResult `json:"questions"`
	Count     int         `json:"count"`
	Message   string      `json:"message,omitempty"`
}

// MCQResult is one generated multiple-choice question. Image bytes are
// not inlined; HasImage marks questions the HTTP API would illustrate.
type MCQResult struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Answer         string   `json:"answer"`
	Subject        string   `json:"subject"`
	Page           int      `json:"page"`
	SourceDocument string   `json:"source_document"`
	ImageCaption   string   `json:"image_caption,omitempty"`
	HasImage       bool     `json:"has_image"`
}

// IndexStatsInput defines the input parameters for the get_index_stats tool.
// This tool takes no parameters.
type IndexStatsInput struct{}

// IndexStatsOutput summarises the question bank.
type IndexStatsOutput struct {
	TotalQuestions      int            `json:"total_questions"`
	TotalImages         int            `json:"total_images"`
	TotalAssociations   int            `json:"total_associations"`
	QuestionsWithImages int            `json:"questions_with_images"`
	SubjectDistribution map[string]int `json:"subject_distribution"`
	Subjects            []string       `json:"subjects"`
}
