package main

import (
	"context"

	"github.com/danieldreier/kanji-srs/internal/quiz"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverInstructions = `
This server runs a spaced-repetition kanji trainer. Each kanji card has up to
three facets, meaning, on'yomi and kun'yomi, scheduled independently.

Recommended study loop:

1. Call next_question with a direction such as "kanji-meaning" or
   "reading_on-kanji". Show the prompt and the numbered options, never the answer.
2. Pass the learner's pick to answer_question as a 1-based choice. The server
   grades it and reschedules the facet.
3. Tell the learner whether they were right and show the correct answer.
4. Repeat until next_question reports nothing to study.

Use submit_review instead when the learner answered a free-form question and
you graded it yourself on the 1-5 scale (5 perfect, 3 correct with effort,
1 forgotten). Use get_stats and get_session to report progress.
`

type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// newMCPServer registers every tool against svc.
func newMCPServer(svc *StudyService) *server.MCPServer {
	s := server.NewMCPServer(
		"Kanji SRS",
		"1.0.0",
		server.WithInstructions(serverInstructions),
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	getSessionTool := mcp.NewTool("get_session",
		mcp.WithDescription("List the facets to study now: due reviews by priority, then capped new facets."),
		mcp.WithArray("facets",
			mcp.Description("Restrict to facets: meaning, reading_on, reading_kun"),
		),
		mcp.WithBoolean("shuffle",
			mcp.Description("Shuffle items within their kind"),
		),
	)

	nextQuestionTool := mcp.NewTool("next_question",
		mcp.WithDescription(
			"Build a multiple-choice question for the most urgent facet. "+
				"Show only the prompt and options. The answer stays on the server.",
		),
		mcp.WithString("direction",
			mcp.Description("Which facet to quiz and which way round (default kanji-meaning)"),
			mcp.Enum(directionNames()...),
		),
	)

	answerQuestionTool := mcp.NewTool("answer_question",
		mcp.WithDescription("Grade the learner's choice for a question and reschedule the facet."),
		mcp.WithString("token",
			mcp.Required(),
			mcp.Description("Token returned by next_question"),
		),
		mcp.WithNumber("choice",
			mcp.Required(),
			mcp.Description("1-based index of the chosen option"),
		),
	)

	submitReviewTool := mcp.NewTool("submit_review",
		mcp.WithDescription("Record a self-graded answer for one facet of a card."),
		mcp.WithString("card_id",
			mcp.Required(),
			mcp.Description("The ID of the card being reviewed"),
		),
		mcp.WithString("facet",
			mcp.Required(),
			mcp.Description("meaning, reading_on or reading_kun"),
		),
		mcp.WithNumber("quality",
			mcp.Required(),
			mcp.Description("Recall quality from 1 (forgotten) to 5 (perfect)"),
		),
	)

	listCardsTool := mcp.NewTool("list_cards",
		mcp.WithDescription("List cards in frequency order."),
		mcp.WithNumber("offset",
			mcp.Description("Number of cards to skip"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of cards to return (default 50, 0 for all)"),
		),
		mcp.WithBoolean("include_states",
			mcp.Description("Include per-facet review states"),
		),
	)

	getStatsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Summarize due, new, learning and leech counts."),
	)

	getConfigTool := mcp.NewTool("get_config",
		mcp.WithDescription("Show the active scheduling configuration."),
	)

	bind := func(h toolHandler) server.ToolHandlerFunc {
		return func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return h(withService(reqCtx, svc), request)
		}
	}
	s.AddTool(getSessionTool, bind(handleGetSession))
	s.AddTool(nextQuestionTool, bind(handleNextQuestion))
	s.AddTool(answerQuestionTool, bind(handleAnswerQuestion))
	s.AddTool(submitReviewTool, bind(handleSubmitReview))
	s.AddTool(listCardsTool, bind(handleListCards))
	s.AddTool(getStatsTool, bind(handleGetStats))
	s.AddTool(getConfigTool, bind(handleGetConfig))
	return s
}

func directionNames() []string {
	dirs := quiz.AllDirections()
	names := make([]string, len(dirs))
	for i, d := range dirs {
		names[i] = d.String()
	}
	return names
}
