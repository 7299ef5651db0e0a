package translator

import btypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

// mapStopReason implements the fixed Converse -> OpenAI finish_reason table.
// Any value not explicitly listed maps to "stop".
func mapStopReason(reason btypes.StopReason) string {
	switch reason {
	case btypes.StopReasonEndTurn, btypes.StopReasonStopSequence:
		return "stop"
	case btypes.StopReasonToolUse:
		return "tool_calls"
	case btypes.StopReasonMaxTokens:
		return "length"
	case btypes.StopReasonContentFiltered:
		return "content_filter"
	default:
		return "stop"
	}
}
