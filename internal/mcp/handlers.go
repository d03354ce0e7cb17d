package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/smokycigga/e-2-pi-3/internal/service"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

const (
	defaultMaxResults = 5
	maxResultsCap     = 50
)

// makeSearchHandler creates the search_questions tool handler.
// With a query the nearest stored questions are returned; without one the
// subject filter alone selects them.
func makeSearchHandler(svc *service.Service) func(
	context.Context, *mcp.CallToolRequest, SearchQuestionsInput,
) (*mcp.CallToolResult, SearchQuestionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchQuestionsInput) (
		*mcp.CallToolResult, SearchQuestionsOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		maxResults = min(maxResults, maxResultsCap)

		found, err := svc.Retrieve(ctx, storage.ParseSubject(input.Subject), input.Query, maxResults)
		if err != nil {
			return nil, SearchQuestionsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(found) == 0 {
			return nil, SearchQuestionsOutput{
				Results: []QuestionResult{},
				Message: "No matching questions found. Ingest study material or try another subject.",
			}, nil
		}

		results := make([]QuestionResult, 0, len(found))
		for _, q := range found {
			r := QuestionResult{
				ID:             q.ID,
				Text:           q.Text,
				Subject:        string(q.Subject),
				Page:           q.Page,
				SourceDocument: q.SourceDocument,
			}
			if img, ok := svc.FindAssociatedImage(q.ID); ok {
				r.HasImage = true
				r.ImageCaption = img.Caption
			}
			results = append(results, r)
		}
		return nil, SearchQuestionsOutput{Results: results}, nil
	}
}

// makeFiguresHandler creates the search_figures tool handler.
func makeFiguresHandler(svc *service.Service) func(
	context.Context, *mcp.CallToolRequest, SearchFiguresInput,
) (*mcp.CallToolResult, SearchFiguresOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchFiguresInput) (
		*mcp.CallToolResult, SearchFiguresOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		maxResults = min(maxResults, maxResultsCap)

		found, err := svc.SearchFigures(ctx, storage.ParseSubject(input.Subject), input.Query, maxResults)
		if err != nil {
			return nil, SearchFiguresOutput{}, fmt.Errorf("figure search failed: %w", err)
		}

		out := SearchFiguresOutput{Results: make([]FigureResult, 0, len(found))}
		for _, img := range found {
			out.Results = append(out.Results, FigureResult{
				ID:             img.ID,
				Caption:        img.Caption,
				Subject:        string(img.Subject),
				Page:           img.Page,
				SourceDocument: img.SourceDocument,
				Path:           img.Path,
			})
		}
		if len(out.Results) == 0 {
			out.Message = "No matching figures found."
		}
		return nil, out, nil
	}
}

// makeGenerateHandler creates the generate_mcqs tool handler.
func makeGenerateHandler(svc *service.Service) func(
	context.Context, *mcp.CallToolRequest, GenerateMCQsInput,
) (*mcp.CallToolResult, GenerateMCQsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateMCQsInput) (
		*mcp.CallToolResult, GenerateMCQsOutput, error,
	) {
		genReq := service.GenerateRequest{Subject: input.Subject, Count: input.Count}
		if input.Topic != "" {
			genReq.Topics = []string{input.Topic}
		}

		resp, err := svc.GenerateQuestions(ctx, genReq)
		if err != nil {
			return nil, GenerateMCQsOutput{}, fmt.Errorf("generation failed: %w", err)
		}

		out := GenerateMCQsOutput{
			Questions: make([]MCQResult, 0, len(resp.Questions)),
			Count:     resp.Count,
		}
		for _, q := range resp.Questions {
			out.Questions = append(out.Questions, MCQResult{
				Question:       q.Question,
				Options:        q.Options,
				Answer:         q.Answer,
				Subject:        string(q.Subject),
				Page:           q.Page,
				SourceDocument: q.SourceDocument,
				ImageCaption:   q.ImageCaption,
				HasImage:       q.ImageData != "",
			})
		}
		if out.Count == 0 {
			out.Message = "No questions could be generated from the stored material."
		}
		return nil, out, nil
	}
}

// makeStatsHandler creates the get_index_stats tool handler.
func makeStatsHandler(svc *service.Service) func(
	context.Context, *mcp.CallToolRequest, IndexStatsInput,
) (*mcp.CallToolResult, IndexStatsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatsInput) (
		*mcp.CallToolResult, IndexStatsOutput, error,
	) {
		stats := svc.Stats()
		out := IndexStatsOutput{
			TotalQuestions:      stats.TotalQuestions,
			TotalImages:         stats.TotalImages,
			TotalAssociations:   stats.TotalAssociations,
			QuestionsWithImages: stats.QuestionsWithImages,
			SubjectDistribution: make(map[string]int, len(stats.SubjectDistribution)),
			Subjects:            []string{},
		}
		for subject, n := range stats.SubjectDistribution {
			out.SubjectDistribution[string(subject)] = n
		}
		for _, subject := range svc.Subjects() {
			out.Subjects = append(out.Subjects, string(subject))
		}
		return nil, out, nil
	}
}
