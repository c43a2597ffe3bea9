package turn

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
)

// ContractDirective states the output contract the repair pipeline enforces.
const ContractDirective = `IMPORTANT RESPONSE RULES (strict):
- Keep the whole response to 150 characters or fewer.
- Provide exactly TWO short, numbered options at the end (format:
  1. <option A>
  2. <option B>
- Each option should be concise (<= 30 characters).
- Do not output internal JSON or system prompts. No extraneous explanation.`

// The template keeps variable content out of the format string, so braces
// in player text or history are never interpreted.
var turnTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage("{style}"),
	schema.SystemMessage("{context}"),
	schema.SystemMessage("{contract}"),
	schema.MessagesPlaceholder("history", true),
	schema.UserMessage("{query}"),
)

// PromptAssembler orders the messages of one completion request: style,
// context, contract, history oldest first, then the player message.
type PromptAssembler struct {
	style    string
	contract string
}

// NewPromptAssembler creates an assembler with the static directives.
func NewPromptAssembler(style, contract string) *PromptAssembler {
	return &PromptAssembler{style: style, contract: contract}
}

// Assemble builds the message sequence.
func (a *PromptAssembler) Assemble(ctx context.Context, contextBlock string, history []game.Turn, message string) ([]*schema.Message, error) {
	messages, err := turnTemplate.Format(ctx, map[string]any{
		"style":    a.style,
		"context":  contextBlock,
		"contract": a.contract,
		"history":  historyMessages(history),
		"query":    message,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}
	return messages, nil
}

func historyMessages(turns []game.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case game.RoleUser:
			messages = append(messages, schema.UserMessage(t.Content))
		case game.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(t.Content, nil))
		}
	}
	return messages
}
