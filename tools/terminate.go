// Termination Tool - the only sanctioned way to end a run as completed.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// TerminateSentinel marks a tool result that requests conversation
// termination. The termination policy looks for it in executed tool
// results, never in free-form agent text alone.
const TerminateSentinel = "[GROUPCHAT_TERMINATE]"

// TerminateTool lets an agent request an orderly end to the group chat.
type TerminateTool struct{}

// NewTerminateTool creates the termination tool.
func NewTerminateTool() *TerminateTool {
	return &TerminateTool{}
}

type terminateArgs struct {
	Message string `json:"message" validate:"required,min=3"`
}

// Metadata returns the tool metadata.
func (t *TerminateTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "terminate_group_chat",
		Description: "End the group chat once every required output of the current workflow step exists. Provide a closing summary message",
		Parameters: []ToolParameter{
			{Name: "message", ParamType: "string", Description: "Closing summary of what was accomplished", Required: true},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *TerminateTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&terminateArgs{})
}

// Validate validates the arguments.
func (t *TerminateTool) Validate(args json.RawMessage) error {
	var a terminateArgs
	return decodeArgs(args, &a)
}

// Execute emits the termination sentinel with the closing message.
func (t *TerminateTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a terminateArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(fmt.Sprintf("%s %s", TerminateSentinel, a.Message)), nil
}
