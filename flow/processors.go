package flow

import (
	"fmt"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/internal/util"
	"github.com/lihan0705/lead-agent/model"
)

// InstructionsProcessor resolves the agent's system instructions into the
// request, rendering {{.key}} template variables from session state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest adds system instructions to the chat request.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	runCtx.LogDebug("agent.instructions.resolved", "agent", agent.GetName(), "length", len(instructions))

	if runCtx.Session != nil && runCtx.Session.State != nil {
		rendered, err := util.RenderTemplate(instructions, runCtx.Session.State)
		if err != nil {
			return fmt.Errorf("render instructions template: %w", err)
		}

		req.Instructions = rendered

		return nil
	}

	req.Instructions = instructions

	return nil
}

// ContentsProcessor assembles the model conversation: the resolved system
// instructions first, then the session's conversation history trimmed to the
// agent's history window. It must run after every processor that contributes
// to req.Instructions.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds conversation contents to the chat request.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	contents := []core.Content{{
		Role:  "system",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	}}

	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		if max := agent.MaxHistoryMessages(); max > 0 && len(events) > max {
			events = events[len(events)-max:]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	req.Contents = contents

	return nil
}
