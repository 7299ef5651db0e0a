package translator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	btypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"
)

// defaultThinkingBudget is used when extended thinking is requested without
// an explicit budget_tokens value.
const defaultThinkingBudget = 10000

// ConverseRequest holds everything needed to invoke either the unary or the
// streaming Converse call for one chat-completion request.
type ConverseRequest struct {
	ModelID             string
	Messages            []btypes.Message
	System              []btypes.SystemContentBlock
	InferenceConfig     *btypes.InferenceConfiguration
	ToolConfig          *btypes.ToolConfiguration
	AdditionalModelFields document.Interface
}

// ToConverseInput builds the native ConverseInput for a unary call.
func (c *ConverseRequest) ToConverseInput() *bedrockruntime.ConverseInput {
	return &bedrockruntime.ConverseInput{
		ModelId:                     &c.ModelID,
		Messages:                    c.Messages,
		System:                      c.System,
		InferenceConfig:             c.InferenceConfig,
		ToolConfig:                  c.ToolConfig,
		AdditionalModelRequestFields: c.AdditionalModelFields,
	}
}

// ToConverseStreamInput builds the native ConverseStreamInput for a
// streaming call; the fields are identical to the unary shape.
func (c *ConverseRequest) ToConverseStreamInput() *bedrockruntime.ConverseStreamInput {
	return &bedrockruntime.ConverseStreamInput{
		ModelId:                     &c.ModelID,
		Messages:                    c.Messages,
		System:                      c.System,
		InferenceConfig:             c.InferenceConfig,
		ToolConfig:                  c.ToolConfig,
		AdditionalModelRequestFields: c.AdditionalModelFields,
	}
}

// BuildConverseRequest translates an OpenAI chat-completion request body
// into Converse invocation parameters. enableCache turns on prompt-caching
// cachePoint injection, which the dispatcher only does for Anthropic-family
// models.
func BuildConverseRequest(modelID string, req ChatCompletionRequest, enableCache bool) (*ConverseRequest, error) {
	var system []btypes.SystemContentBlock
	var messages []btypes.Message
	toolNamesSeen := map[string]bool{}

	appendUserBlock := func(block btypes.ContentBlock) {
		if n := len(messages); n > 0 && messages[n-1].Role == btypes.ConversationRoleUser {
			messages[n-1].Content = append(messages[n-1].Content, block)
			return
		}
		messages = append(messages, btypes.Message{
			Role:    btypes.ConversationRoleUser,
			Content: []btypes.ContentBlock{block},
		})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			parts, err := systemTextParts(msg.Content)
			if err != nil {
				return nil, fmt.Errorf("decode system message: %w", err)
			}
			for _, text := range parts {
				system = append(system, &btypes.SystemContentBlockMemberText{Value: text})
			}

		case "tool":
			text, _ := contentAsString(msg.Content)
			appendUserBlock(&btypes.ContentBlockMemberToolResult{
				Value: btypes.ToolResultBlock{
					ToolUseId: &msg.ToolCallID,
					Content: []btypes.ToolResultContentBlock{
						&btypes.ToolResultContentBlockMemberText{Value: text},
					},
				},
			})

		case "user":
			blocks, err := userContentBlocks(msg.Content)
			if err != nil {
				return nil, fmt.Errorf("decode user message: %w", err)
			}
			messages = append(messages, btypes.Message{
				Role:    btypes.ConversationRoleUser,
				Content: blocks,
			})

		case "assistant":
			blocks, err := assistantContentBlocks(msg)
			if err != nil {
				return nil, fmt.Errorf("decode assistant message: %w", err)
			}
			for _, tc := range msg.ToolCalls {
				toolNamesSeen[tc.Function.Name] = true
			}
			messages = append(messages, btypes.Message{
				Role:    btypes.ConversationRoleAssistant,
				Content: blocks,
			})
		}
	}

	if enableCache {
		if len(system) > 0 {
			system = append(system, &btypes.SystemContentBlockMemberCachePoint{
				Value: btypes.CachePointBlock{Type: btypes.CachePointTypeDefault},
			})
		}
	}

	toolConfig, err := buildToolConfig(req.Tools, toolNamesSeen, enableCache)
	if err != nil {
		return nil, err
	}

	inferenceConfig := buildInferenceConfig(req)

	var additional document.Interface
	if budget, ok := thinkingBudget(req); ok {
		additional = document.NewLazyDocument(map[string]any{
			"thinking": map[string]any{
				"type":          "enabled",
				"budget_tokens": budget,
			},
		})
	}

	return &ConverseRequest{
		ModelID:               modelID,
		Messages:              messages,
		System:                system,
		InferenceConfig:       inferenceConfig,
		ToolConfig:            toolConfig,
		AdditionalModelFields: additional,
	}, nil
}

func thinkingBudget(req ChatCompletionRequest) (int, bool) {
	if req.Thinking != nil {
		budget := req.Thinking.BudgetTokens
		if budget == 0 {
			budget = defaultThinkingBudget
		}
		return budget, true
	}
	if req.ReasoningEffort != "" {
		return defaultThinkingBudget, true
	}
	return 0, false
}

func buildInferenceConfig(req ChatCompletionRequest) *btypes.InferenceConfiguration {
	cfg := &btypes.InferenceConfiguration{}
	set := false

	if req.MaxTokens != nil {
		v := int32(*req.MaxTokens)
		cfg.MaxTokens = &v
		set = true
	}
	if req.Temperature != nil {
		v := float32(*req.Temperature)
		cfg.Temperature = &v
		set = true
	}
	if req.TopP != nil {
		v := float32(*req.TopP)
		cfg.TopP = &v
		set = true
	}
	if len(req.Stop) > 0 {
		if seqs := decodeStopSequences(req.Stop); len(seqs) > 0 {
			cfg.StopSequences = seqs
			set = true
		}
	}

	if !set {
		return nil
	}
	return cfg
}

func decodeStopSequences(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	return nil
}

// buildToolConfig synthesizes a minimal toolConfig when the request has no
// tools but the translated history references tool names, since Converse
// requires a toolConfig whenever toolUse/toolResult blocks are present.
func buildToolConfig(tools []OpenAITool, referencedNames map[string]bool, enableCache bool) (*btypes.ToolConfiguration, error) {
	if len(tools) > 0 {
		specs := make([]btypes.Tool, 0, len(tools))
		for _, t := range tools {
			schema := t.Function.Parameters
			if schema == nil {
				schema = map[string]any{"type": "object"}
			}
			name := t.Function.Name
			desc := t.Function.Description
			specs = append(specs, &btypes.ToolMemberToolSpec{
				Value: btypes.ToolSpecification{
					Name:        &name,
					Description: &desc,
					InputSchema: &btypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
				},
			})
		}
		if enableCache {
			specs = append(specs, &btypes.ToolMemberCachePoint{
				Value: btypes.CachePointBlock{Type: btypes.CachePointTypeDefault},
			})
		}
		return &btypes.ToolConfiguration{Tools: specs}, nil
	}

	if len(referencedNames) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(referencedNames))
	for n := range referencedNames {
		names = append(names, n)
	}
	sort.Strings(names)

	specs := make([]btypes.Tool, 0, len(names))
	for _, n := range names {
		name := n
		desc := "Tool from conversation history"
		specs = append(specs, &btypes.ToolMemberToolSpec{
			Value: btypes.ToolSpecification{
				Name:        &name,
				Description: &desc,
				InputSchema: &btypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(map[string]any{"type": "object"})},
			},
		})
	}

	return &btypes.ToolConfiguration{Tools: specs}, nil
}

// ─── content decoding helpers ───

func contentAsString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

func systemTextParts(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if s, ok := contentAsString(raw); ok {
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	}

	var parts []OpenAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}

	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return texts, nil
}

func userContentBlocks(raw json.RawMessage) ([]btypes.ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	if s, ok := contentAsString(raw); ok {
		if s == "" {
			return nil, nil
		}
		return []btypes.ContentBlock{&btypes.ContentBlockMemberText{Value: s}}, nil
	}

	var parts []OpenAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}

	var blocks []btypes.ContentBlock
	for _, p := range parts {
		switch p.Type {
		case "text":
			blocks = append(blocks, &btypes.ContentBlockMemberText{Value: p.Text})
			if p.CacheControl != nil {
				blocks = append(blocks, &btypes.ContentBlockMemberCachePoint{
					Value: btypes.CachePointBlock{Type: btypes.CachePointTypeDefault},
				})
			}
		case "image_url":
			if p.ImageURL == nil {
				continue
			}
			block, ok := imageBlockFromDataURL(p.ImageURL.URL)
			if ok {
				blocks = append(blocks, block)
			} else {
				blocks = append(blocks, &btypes.ContentBlockMemberText{
					Value: fmt.Sprintf("[Image URL: %s]", p.ImageURL.URL),
				})
			}
		}
	}

	return blocks, nil
}

// imageBlockFromDataURL parses a "data:<mime>;base64,<body>" URL into a
// Converse image content block. Remote URL fetching is out of scope.
func imageBlockFromDataURL(url string) (btypes.ContentBlock, bool) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return nil, false
	}

	rest := url[len(prefix):]
	semi := strings.Index(rest, ";")
	comma := strings.Index(rest, ",")
	if semi < 0 || comma < 0 || comma < semi {
		return nil, false
	}

	mime := rest[:semi]
	body := rest[comma+1:]

	subtype := mime
	if idx := strings.Index(mime, "/"); idx >= 0 {
		subtype = mime[idx+1:]
	}
	format := normalizeImageFormat(subtype)

	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, false
	}

	return &btypes.ContentBlockMemberImage{
		Value: btypes.ImageBlock{
			Format: format,
			Source: &btypes.ImageSourceMemberBytes{Value: decoded},
		},
	}, true
}

func normalizeImageFormat(subtype string) btypes.ImageFormat {
	switch strings.ToLower(subtype) {
	case "jpg":
		return btypes.ImageFormatJpeg
	case "jpeg":
		return btypes.ImageFormatJpeg
	case "png":
		return btypes.ImageFormatPng
	case "gif":
		return btypes.ImageFormatGif
	case "webp":
		return btypes.ImageFormatWebp
	default:
		return btypes.ImageFormatPng
	}
}

// assistantContentBlocks translates an assistant message's text content and
// any tool_calls into Converse content blocks. When tool_calls are present,
// empty text blocks are dropped first because Converse rejects blank text
// alongside toolUse.
func assistantContentBlocks(msg OpenAIMessage) ([]btypes.ContentBlock, error) {
	var blocks []btypes.ContentBlock

	if s, ok := contentAsString(msg.Content); ok && s != "" {
		blocks = append(blocks, &btypes.ContentBlockMemberText{Value: s})
	} else if len(msg.Content) > 0 && !ok {
		var parts []OpenAIContentPart
		if err := json.Unmarshal(msg.Content, &parts); err == nil {
			for _, p := range parts {
				if p.Type == "text" && p.Text != "" {
					blocks = append(blocks, &btypes.ContentBlockMemberText{Value: p.Text})
				}
			}
		}
	}

	if len(msg.ToolCalls) > 0 {
		// Converse rejects blank text alongside toolUse content.
		filtered := blocks[:0]
		for _, b := range blocks {
			if tb, ok := b.(*btypes.ContentBlockMemberText); ok && tb.Value == "" {
				continue
			}
			filtered = append(filtered, b)
		}
		blocks = filtered

		for _, tc := range msg.ToolCalls {
			input := map[string]any{}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = map[string]any{"raw": tc.Function.Arguments}
			}
			id := tc.ID
			name := tc.Function.Name
			blocks = append(blocks, &btypes.ContentBlockMemberToolUse{
				Value: btypes.ToolUseBlock{
					ToolUseId: &id,
					Name:      &name,
					Input:     document.NewLazyDocument(input),
				},
			})
		}
	}

	return blocks, nil
}
