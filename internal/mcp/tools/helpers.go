package tools

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/slidepilot/pkg/apierr"
)

// ToolHandler is the interface that all tool handlers implement.
type ToolHandler[P any] interface {
	Handle(ctx context.Context, params P) (string, error)
}

// WrapHandler adapts a ToolHandler into the SDK's AddTool callback.
// It handles nil params by using a zero value and maps errors to CallToolResult.
func WrapHandler[P any](h ToolHandler[P]) func(context.Context, *sdkmcp.CallToolRequest, *P) (*sdkmcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, params *P) (*sdkmcp.CallToolResult, any, error) {
		if params == nil {
			params = new(P)
		}
		result, err := h.Handle(ctx, *params)
		if err != nil {
			return &sdkmcp.CallToolResult{
				IsError: true,
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
			}, nil, nil
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result}},
		}, nil, nil
	}
}

// WrapNotFound translates store misses into user-facing messages.
func WrapNotFound(entity string, err error) error {
	if apierr.IsNotFound(err) {
		return fmt.Errorf("%s not found", entity)
	}
	return fmt.Errorf("get %s: %w", entity, err)
}

// Register adds every SlidePilot tool to server. Render tools are skipped
// when jobs is nil.
func Register(server *sdkmcp.Server, generate *GenerateDeckHandler, list *ListDecksHandler, create *CreateRenderJobHandler, get *GetRenderJobHandler) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "generate_deck",
		Description: "Generate a Marp slide deck from a topic, an uploaded or remote PDF/HTML document. Runs the full quality-gated pipeline and returns the title, score, key points and deck id.",
	}, WrapHandler[GenerateDeckParams](generate))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_decks",
		Description: "List the caller's most recent decks with their ids and scores.",
	}, WrapHandler[ListDecksParams](list))

	if create != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "create_render_job",
			Description: "Start an asynchronous narrated video render for a deck. Returns a job id.",
		}, WrapHandler[CreateRenderJobParams](create))
	}
	if get != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "get_render_job",
			Description: "Get the status of a render job (pending, processing, completed, failed), optionally waiting for it to finish.",
		}, WrapHandler[GetRenderJobParams](get))
	}
}
