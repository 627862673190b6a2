package graph

import (
	"encoding/json"

	"github.com/dmoura/tripgraph/tools"
	"github.com/dmoura/tripgraph/types"
)

const supervisorPrompt = `You are the host assistant of a travel help desk.
Classify the user's latest request and pick the specialist who should
handle it. Reply with ONLY a JSON object, optionally inside a json code
fence, of the form {"route": "<label>"} where <label> is one of:

- "flight_searcher": searching flights, comparing fares, price history
- "tourism_searcher": destinations, attractions, local tips, itineraries

Do not answer the request yourself and do not invent other labels.`

const flightPrompt = `You are the flight search specialist of a travel
help desk. Help the user find flights using the tools available to you.
Search with the parameters the user gave; ask for origin, destination or
date if any is missing. Present offers concisely with carrier, times and
total price. When the request is complete, or the user needs something
outside flight search, call the complete_or_escalate tool to hand control
back to the host assistant. Do not waste the user's time and do not make
up flights.`

const tourismPrompt = `You are the tourism specialist of a travel help
desk. Help the user with destinations, attractions and trip ideas based
on the conversation so far. When the request is complete, or the user
needs something outside tourism advice, call the complete_or_escalate
tool to hand control back to the host assistant.`

// handoffContent is the synthesized tool result announcing a delegation
// to a specialist, appended before the specialist's first turn.
const handoffContent = `The assistant is now the %s. Reflect on the above
conversation and assist the user with their pending request. If the user
changes their mind or needs help beyond your scope, call the
complete_or_escalate tool to return to the host assistant. Do not mention
who you are; act as the assistant of the conversation.`

// resumeContent is the synthesized tool result appended when a specialist
// hands control back.
const resumeContent = `Resuming dialog with the host assistant. Reflect on
the past conversation and assist the user as needed.`

const escalateSchema = `{
	"type": "object",
	"properties": {
		"cancel": {"type": "boolean", "description": "True if the user changed their mind or the task should be abandoned"},
		"reason": {"type": "string", "description": "Why control is being returned"}
	}
}`

// escalateTool is the hand-back pseudo-tool schema bound to specialists.
// It is routed by the graph, never executed.
func escalateTool() types.ToolSchema {
	return types.ToolSchema{
		Name:        tools.CompleteOrEscalate,
		Description: "Return control to the host assistant when the task is complete or outside your scope.",
		Parameters:  json.RawMessage(escalateSchema),
	}
}
