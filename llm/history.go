package llm

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/dmoura/tripgraph/types"
)

// perMessageOverhead approximates the chat-format framing tokens added
// around each message by OpenAI-style endpoints.
const perMessageOverhead = 4

// HistoryTrimmer trims a message history to a token budget, keeping the
// leading system messages and the newest suffix of the conversation.
type HistoryTrimmer struct {
	budget   int
	encoding *tiktoken.Tiktoken
}

// NewHistoryTrimmer creates a trimmer. A budget of 0 disables trimming.
// When the tokenizer data is unavailable, a bytes/4 estimate is used.
func NewHistoryTrimmer(budget int) *HistoryTrimmer {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		enc = nil
	}
	return &HistoryTrimmer{budget: budget, encoding: enc}
}

// CountTokens estimates the token count of one message.
func (t *HistoryTrimmer) CountTokens(m types.Message) int {
	text := m.Content
	for _, tc := range m.ToolCalls {
		text += tc.Name + string(tc.Arguments)
	}
	if t.encoding != nil {
		return len(t.encoding.Encode(text, nil, nil)) + perMessageOverhead
	}
	return len(text)/4 + perMessageOverhead
}

// Trim returns a history within the budget. The cut never lands on a
// tool-result message: a kept tool result always keeps the assistant
// message whose call it answers.
func (t *HistoryTrimmer) Trim(msgs []types.Message) []types.Message {
	if t.budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	// Leading system messages are always kept.
	sysEnd := 0
	for sysEnd < len(msgs) && msgs[sysEnd].Role == types.RoleSystem {
		sysEnd++
	}

	used := 0
	for i := 0; i < sysEnd; i++ {
		used += t.CountTokens(msgs[i])
	}

	cut := len(msgs)
	for cut > sysEnd {
		cost := t.CountTokens(msgs[cut-1])
		if used+cost > t.budget && cut < len(msgs) {
			break
		}
		used += cost
		cut--
	}

	// Never start the suffix at a tool result.
	for cut > sysEnd && cut < len(msgs) && msgs[cut].Role == types.RoleTool {
		cut--
	}

	if cut == sysEnd {
		return msgs
	}
	out := make([]types.Message, 0, sysEnd+len(msgs)-cut)
	out = append(out, msgs[:sysEnd]...)
	out = append(out, msgs[cut:]...)
	return out
}
