package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAskSchemeQuestionTool returns the ask_scheme_question tool definition
func createAskSchemeQuestionTool() mcp.Tool {
	return mcp.NewTool("ask_scheme_question",
		mcp.WithDescription("Answer a question about government welfare schemes using only ingested official documents, with numbered citations"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The citizen's question, in English or an Indian language"),
		),
		mcp.WithString("language",
			mcp.Description("Answer language: en, kn, hi, ta or te (default: en)"),
			mcp.Enum("en", "kn", "hi", "ta", "te"),
		),
	)
}

// createSearchSchemesTool returns the search_schemes tool definition
func createSearchSchemesTool() mcp.Tool {
	return mcp.NewTool("search_schemes",
		mcp.WithDescription("Find schemes whose documents match a description of the citizen's situation"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Situation or need, e.g. 'widow pension for women over 60'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum schemes to return (default: 5, max: 50)"),
		),
	)
}

// createGetDocumentTool returns the get_document tool definition
func createGetDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Retrieve an ingested source document and its chunk text by ID"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID (format: doc_{uuid})"),
		),
		mcp.WithBoolean("include_chunks",
			mcp.Description("Include the document's chunk text (default: true)"),
		),
	)
}
