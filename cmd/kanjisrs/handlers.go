package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danieldreier/kanji-srs/internal/quiz"
	"github.com/danieldreier/kanji-srs/internal/selector"
	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/danieldreier/kanji-srs/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

type serviceKey struct{}

// withService returns a context carrying svc for the tool handlers.
func withService(ctx context.Context, svc *StudyService) context.Context {
	return context.WithValue(ctx, serviceKey{}, svc)
}

func serviceFrom(ctx context.Context) (*StudyService, bool) {
	s, ok := ctx.Value(serviceKey{}).(*StudyService)
	return s, ok && s != nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func stringArgs(request mcp.CallToolRequest, name string) []string {
	var out []string
	if raw, ok := request.Params.Arguments[name].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func intArg(request mcp.CallToolRequest, name string) (int, bool) {
	f, ok := request.Params.Arguments[name].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// handleGetSession returns the ordered list of facets to study now.
func handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}

	var opts SessionOptions
	for _, name := range stringArgs(request, "facets") {
		facet, err := srs.ParseFacet(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Facets = append(opts.Facets, facet)
	}
	opts.Shuffle, _ = request.Params.Arguments["shuffle"].(bool)

	session, err := s.GetSession(ctx, timeNow(), opts)
	if err != nil {
		s.Logger.Error("Error building session", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Error building session: %v", err)), nil
	}

	review, fresh := session.Counts()
	response := SessionResponse{
		Items:  session.Items,
		Counts: SessionCounts{Review: review, New: fresh},
	}
	if response.Items == nil {
		response.Items = []selector.Item{}
	}
	return jsonResult(response)
}

// handleNextQuestion builds a multiple-choice question for the most urgent
// facet. The correct answer is held server-side until answer_question.
func handleNextQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}

	name, _ := request.Params.Arguments["direction"].(string)
	if name == "" {
		name = "kanji-meaning"
	}
	dir, err := quiz.ParseDirection(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	response, err := s.NextQuestion(ctx, dir)
	if errors.Is(err, quiz.ErrNoQuestions) {
		return mcp.NewToolResultText(`{"message": "Nothing to study right now"}`), nil
	}
	if err != nil {
		s.Logger.Error("Error building question", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Error building question: %v", err)), nil
	}
	return jsonResult(response)
}

// handleAnswerQuestion grades a 1-based choice for an outstanding question.
func handleAnswerQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, ok := request.Params.Arguments["token"].(string)
	if !ok || token == "" {
		return mcp.NewToolResultError("Missing required parameter: token"), nil
	}
	choice, ok := intArg(request, "choice")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: choice"), nil
	}

	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}

	response, err := s.AnswerQuestion(ctx, token, choice-1)
	if errors.Is(err, quiz.ErrQuestionExpired) {
		return mcp.NewToolResultError("Question expired or already answered, call next_question again"), nil
	}
	if err != nil {
		s.Logger.Error("Error answering question", zap.String("token", token), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Error answering question: %v", err)), nil
	}
	return jsonResult(response)
}

// handleSubmitReview records a self-graded answer with quality 1-5.
func handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, ok := request.Params.Arguments["card_id"].(string)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: card_id"), nil
	}
	facetName, ok := request.Params.Arguments["facet"].(string)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: facet"), nil
	}
	quality, ok := intArg(request, "quality")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: quality"), nil
	}
	if err := srs.CheckQuality(quality); err != nil {
		return mcp.NewToolResultError("Quality must be between 1 and 5"), nil
	}
	facet, err := srs.ParseFacet(facetName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}

	outcome, err := s.ScheduleUpdate(ctx, cardID, facet, quality)
	if errors.Is(err, storage.ErrCardNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Card not found: %s", cardID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error submitting review: %v", err)), nil
	}

	return jsonResult(ReviewResponse{
		Success: true,
		Message: s.Scheduler.Describe(outcome),
		Outcome: outcome,
	})
}

// handleListCards returns a page of the collection in frequency order.
func handleListCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}

	offset, _ := intArg(request, "offset")
	limit, ok := intArg(request, "limit")
	if !ok {
		limit = 50
	}
	includeStates, _ := request.Params.Arguments["include_states"].(bool)

	response, err := s.ListCards(ctx, offset, limit, includeStates)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing cards: %v", err)), nil
	}
	return jsonResult(response)
}

// handleGetStats summarizes progress.
func handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}
	stats, err := s.Stats(ctx, timeNow())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error computing stats: %v", err)), nil
	}
	return jsonResult(stats)
}

// handleGetConfig returns the active scheduling configuration.
func handleGetConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("Error: Service not available"), nil
	}
	return jsonResult(s.Config)
}
