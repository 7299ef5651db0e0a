package translator

import (
	btypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// StreamTranslator turns the Converse event stream into OpenAI-compatible
// chat-completion chunks, in arrival order. One instance per request; it is
// not safe for concurrent use.
type StreamTranslator struct {
	chatID string
	model  string

	// toolIndexByBlock maps a Converse content-block index to the position
	// the tool call was assigned in the OpenAI delta's tool_calls array.
	toolIndexByBlock map[int32]int
	nextToolIndex    int
}

func NewStreamTranslator(chatID, model string) *StreamTranslator {
	return &StreamTranslator{
		chatID:           chatID,
		model:            model,
		toolIndexByBlock: map[int32]int{},
	}
}

func (t *StreamTranslator) chunk(delta ChunkDelta, finishReason *string) ChatCompletionChunk {
	return ChatCompletionChunk{
		ID:     t.chatID,
		Object: "chat.completion.chunk",
		Model:  t.model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}
}

// Translate converts one Converse stream event into zero or more
// chat-completion chunks.
func (t *StreamTranslator) Translate(event btypes.ConverseStreamOutput) []ChatCompletionChunk {
	switch e := event.(type) {
	case *btypes.ConverseStreamOutputMemberMessageStart:
		return []ChatCompletionChunk{t.chunk(ChunkDelta{Role: "assistant", Content: ""}, nil)}

	case *btypes.ConverseStreamOutputMemberContentBlockStart:
		start, ok := e.Value.Start.(*btypes.ContentBlockStartMemberToolUse)
		if !ok {
			return nil
		}

		idx := t.nextToolIndex
		t.nextToolIndex++
		if e.Value.ContentBlockIndex != nil {
			t.toolIndexByBlock[*e.Value.ContentBlockIndex] = idx
		}

		id := ""
		if start.Value.ToolUseId != nil {
			id = *start.Value.ToolUseId
		}
		name := ""
		if start.Value.Name != nil {
			name = *start.Value.Name
		}

		return []ChatCompletionChunk{t.chunk(ChunkDelta{
			ToolCalls: []ChunkToolCallDelta{{
				Index:    idx,
				ID:       id,
				Type:     "function",
				Function: ChunkFunctionDelta{Name: name, Arguments: ""},
			}},
		}, nil)}

	case *btypes.ConverseStreamOutputMemberContentBlockDelta:
		return t.translateDelta(e.Value)

	case *btypes.ConverseStreamOutputMemberMessageStop:
		reason := mapStopReason(e.Value.StopReason)
		return []ChatCompletionChunk{t.chunk(ChunkDelta{}, &reason)}

	case *btypes.ConverseStreamOutputMemberMetadata:
		usage := buildUsage(e.Value.Usage)
		if usage == nil {
			return nil
		}
		return []ChatCompletionChunk{{
			ID:      t.chatID,
			Object:  "chat.completion.chunk",
			Model:   t.model,
			Choices: []ChunkChoice{},
			Usage:   usage,
		}}
	}

	return nil
}

func (t *StreamTranslator) translateDelta(event btypes.ContentBlockDeltaEvent) []ChatCompletionChunk {
	switch d := event.Delta.(type) {
	case *btypes.ContentBlockDeltaMemberText:
		if d.Value == "" {
			return nil
		}
		return []ChatCompletionChunk{t.chunk(ChunkDelta{Content: d.Value}, nil)}

	case *btypes.ContentBlockDeltaMemberReasoningContent:
		rt, ok := d.Value.(*btypes.ReasoningContentBlockDeltaMemberText)
		if !ok || rt.Value == "" {
			return nil
		}
		return []ChatCompletionChunk{t.chunk(ChunkDelta{ReasoningContent: rt.Value}, nil)}

	case *btypes.ContentBlockDeltaMemberToolUse:
		if d.Value.Input == nil || *d.Value.Input == "" {
			return nil
		}

		idx := t.nextToolIndex - 1
		if event.ContentBlockIndex != nil {
			if mapped, ok := t.toolIndexByBlock[*event.ContentBlockIndex]; ok {
				idx = mapped
			}
		}

		return []ChatCompletionChunk{t.chunk(ChunkDelta{
			ToolCalls: []ChunkToolCallDelta{{
				Index:    idx,
				Function: ChunkFunctionDelta{Arguments: *d.Value.Input},
			}},
		}, nil)}
	}

	return nil
}

// ErrorChunk builds the terminal error chunk emitted before [DONE] when a
// mid-stream failure occurs.
func ErrorChunk(chatID, model, message string) ChatCompletionChunk {
	reason := "stop"
	return ChatCompletionChunk{
		ID:     chatID,
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        ChunkDelta{Content: message},
			FinishReason: &reason,
		}},
	}
}
