package translator

import (
	"testing"

	btypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

func TestFromConverseOutput_TextOnly(t *testing.T) {
	output := &btypes.ConverseOutputMemberMessage{
		Value: btypes.Message{
			Role: btypes.ConversationRoleAssistant,
			Content: []btypes.ContentBlock{
				&btypes.ContentBlockMemberText{Value: "hello there"},
			},
		},
	}
	usage := &btypes.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}

	resp, err := FromConverseOutput("chatcmpl-1", "claude-sonnet", output, usage, btypes.StopReasonEndTurn)
	if err != nil {
		t.Fatalf("FromConverseOutput: %v", err)
	}

	if len(resp.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(resp.Choices))
	}
	if resp.Choices[0].Message.Content != "hello there" {
		t.Errorf("content = %q, want %q", resp.Choices[0].Message.Content, "hello there")
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", resp.Choices[0].FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %#v, want total 15", resp.Usage)
	}
}

func TestFromConverseOutput_ToolUseForcesToolCallsFinish(t *testing.T) {
	id, name := "call_1", "get_weather"
	output := &btypes.ConverseOutputMemberMessage{
		Value: btypes.Message{
			Role: btypes.ConversationRoleAssistant,
			Content: []btypes.ContentBlock{
				&btypes.ContentBlockMemberToolUse{Value: btypes.ToolUseBlock{
					ToolUseId: &id,
					Name:      &name,
				}},
			},
		},
	}

	resp, err := FromConverseOutput("chatcmpl-2", "claude-sonnet", output, nil, btypes.StopReasonToolUse)
	if err != nil {
		t.Fatalf("FromConverseOutput: %v", err)
	}

	if resp.Choices[0].FinishReason != "tool_calls" {
		t.Errorf("finish_reason = %q, want tool_calls", resp.Choices[0].FinishReason)
	}
	if len(resp.Choices[0].Message.ToolCalls) != 1 || resp.Choices[0].Message.ToolCalls[0].Function.Name != "get_weather" {
		t.Errorf("tool calls = %#v", resp.Choices[0].Message.ToolCalls)
	}
	if resp.Usage != nil {
		t.Errorf("usage = %#v, want nil when Converse reported none", resp.Usage)
	}
}

func TestFromConverseOutput_NonMessageOutputErrors(t *testing.T) {
	var output btypes.ConverseOutput
	if _, err := FromConverseOutput("id", "model", output, nil, btypes.StopReasonEndTurn); err == nil {
		t.Error("expected an error for a nil/unexpected output union member")
	}
}

func TestBuildUsage_CacheCountersOnlyWhenPresent(t *testing.T) {
	if u := buildUsage(&btypes.TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2}); u.PromptTokensDetails != nil {
		t.Errorf("expected no cache details when counters are absent, got %#v", u.PromptTokensDetails)
	}

	cacheRead := int32(4)
	u := buildUsage(&btypes.TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2, CacheReadInputTokens: &cacheRead})
	if u.PromptTokensDetails == nil || u.PromptTokensDetails.CachedTokens != 4 {
		t.Errorf("cache details = %#v, want CachedTokens 4", u.PromptTokensDetails)
	}
}

func TestMapStopReason_UnknownFallsBackToStop(t *testing.T) {
	if got := mapStopReason(btypes.StopReason("something-new")); got != "stop" {
		t.Errorf("mapStopReason(unknown) = %q, want stop", got)
	}
	if got := mapStopReason(btypes.StopReasonMaxTokens); got != "length" {
		t.Errorf("mapStopReason(max_tokens) = %q, want length", got)
	}
}
