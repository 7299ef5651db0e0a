package translator

import (
	"encoding/json"
	"strings"

	btypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// FromConverseOutput translates a unary Converse response into an OpenAI
// chat-completion response.
func FromConverseOutput(chatID, model string, output btypes.ConverseOutput, usage *btypes.TokenUsage, stopReason btypes.StopReason) (*ChatCompletionResponse, error) {
	msgMember, ok := output.(*btypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, errUnexpectedOutputType
	}

	var textParts []string
	var reasoningParts []string
	var toolCalls []OpenAIToolCall

	for i, block := range msgMember.Value.Content {
		switch b := block.(type) {
		case *btypes.ContentBlockMemberText:
			textParts = append(textParts, b.Value)
		case *btypes.ContentBlockMemberReasoningContent:
			if rt, ok := b.Value.(*btypes.ReasoningContentBlockMemberReasoningText); ok {
				reasoningParts = append(reasoningParts, rt.Value.Text)
			}
		case *btypes.ContentBlockMemberToolUse:
			args := map[string]any{}
			if b.Value.Input != nil {
				_ = b.Value.Input.UnmarshalSmithyDocument(&args)
			}
			argsJSON, _ := json.Marshal(args)
			id := ""
			if b.Value.ToolUseId != nil {
				id = *b.Value.ToolUseId
			}
			name := ""
			if b.Value.Name != nil {
				name = *b.Value.Name
			}
			toolCalls = append(toolCalls, OpenAIToolCall{
				ID:   id,
				Type: "function",
				Function: OpenAIFunctionCall{
					Name:      name,
					Arguments: string(argsJSON),
				},
			})
			_ = i
		}
	}

	finishReason := mapStopReason(stopReason)
	if len(toolCalls) > 0 && finishReason == "stop" {
		finishReason = "tool_calls"
	}

	return &ChatCompletionResponse{
		ID:     chatID,
		Object: "chat.completion",
		Model:  model,
		Choices: []ChatCompletionChoice{{
			Index: 0,
			Message: ChatCompletionMessage{
				Role:             "assistant",
				Content:          strings.Join(textParts, "\n"),
				ReasoningContent: strings.Join(reasoningParts, "\n"),
				ToolCalls:        toolCalls,
			},
			FinishReason: finishReason,
		}},
		Usage: buildUsage(usage),
	}, nil
}

var errUnexpectedOutputType = &translatorError{"converse output was not a message"}

type translatorError struct{ msg string }

func (e *translatorError) Error() string { return e.msg }

// buildUsage emits prompt_tokens_details/cache_* only when the cache
// counters are present and nonzero.
func buildUsage(usage *btypes.TokenUsage) *ChatCompletionUsage {
	if usage == nil {
		return nil
	}

	out := &ChatCompletionUsage{
		PromptTokens:     int(usage.InputTokens),
		CompletionTokens: int(usage.OutputTokens),
		TotalTokens:      int(usage.TotalTokens),
	}

	var cacheRead, cacheWrite int
	if usage.CacheReadInputTokens != nil {
		cacheRead = int(*usage.CacheReadInputTokens)
	}
	if usage.CacheWriteInputTokens != nil {
		cacheWrite = int(*usage.CacheWriteInputTokens)
	}

	if cacheRead != 0 || cacheWrite != 0 {
		out.PromptTokensDetails = &PromptTokensDetails{CachedTokens: cacheRead}
		out.CacheReadInputTokens = &cacheRead
		out.CacheCreationInputTokens = &cacheWrite
	}

	return out
}
