package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/models"
)

// questionAnswerer is the part of the pipeline the tools drive
type questionAnswerer interface {
	Query(ctx context.Context, req models.QueryRequest) *models.QueryResponse
	SearchSchemes(ctx context.Context, req models.SchemeSearchRequest) *models.SchemeSearchResponse
}

// documentReader reads ingested documents
type documentReader interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DocumentChunks(ctx context.Context, id string) ([]*models.Chunk, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleAskSchemeQuestion implements the ask_scheme_question tool
func handleAskSchemeQuestion(pipeline questionAnswerer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || question == "" {
			return textResult("Error: question parameter is required"), nil
		}

		resp := pipeline.Query(ctx, models.QueryRequest{
			Query:    question,
			Language: request.GetString("language", ""),
		})
		if !resp.Success {
			logger.Warn().Str("type", string(resp.Error.Type)).Msg("Question not answered")
		}

		return textResult(formatAnswer(resp)), nil
	}
}

// handleSearchSchemes implements the search_schemes tool
func handleSearchSchemes(pipeline questionAnswerer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", 5)
		if limit > 50 {
			limit = 50
		}
		if limit < 1 {
			limit = 1
		}

		resp := pipeline.SearchSchemes(ctx, models.SchemeSearchRequest{Query: query, Limit: limit})
		if !resp.Success {
			logger.Warn().Str("type", string(resp.Error.Type)).Msg("Scheme search failed")
		}

		return textResult(formatSchemes(query, resp)), nil
	}
}

// handleGetDocument implements the get_document tool
func handleGetDocument(documents documentReader, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil || docID == "" {
			return textResult("Error: document_id parameter is required"), nil
		}

		doc, err := documents.GetDocument(ctx, docID)
		if err != nil {
			logger.Error().Err(err).Str("doc_id", docID).Msg("GetDocument failed")
			return textResult(fmt.Sprintf("Document not found: %v", err)), nil
		}

		var chunks []*models.Chunk
		if request.GetBool("include_chunks", true) {
			chunks, err = documents.DocumentChunks(ctx, docID)
			if err != nil {
				logger.Error().Err(err).Str("doc_id", docID).Msg("DocumentChunks failed")
				return textResult(fmt.Sprintf("Failed to load chunks: %v", err)), nil
			}
		}

		return textResult(formatDocument(doc, chunks)), nil
	}
}
