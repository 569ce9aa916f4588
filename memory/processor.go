package memory

import (
	"fmt"
	"strings"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/flow"
	"github.com/lihan0705/lead-agent/model"
)

// sectionHeader opens the memory block appended to the system instructions.
const sectionHeader = "# Agent Memory"

// Processor is a request processor that splices persistent memory into the
// system instructions of every model turn. Memory is re-read on each turn so
// edits made mid-session, by the user or by the agent itself, take effect on
// the next model call.
type Processor struct {
	cfg Config
}

// NewProcessor creates the memory injection processor.
func NewProcessor(cfg Config) *Processor {
	if cfg.AssistantID == "" {
		cfg.AssistantID = DefaultAssistantID
	}

	return &Processor{cfg: cfg}
}

// Name returns the processor's identifier.
func (p *Processor) Name() string {
	return "memory"
}

// ProcessRequest appends the loaded memory sections to the request
// instructions. Load failures degrade to a warning and the run continues
// with whatever memory was readable.
func (p *Processor) ProcessRequest(runCtx *core.RunContext, req *model.Request, _ flow.FlowAgent) error {
	sources, err := Load(p.cfg)
	if err != nil {
		runCtx.LogWarn("memory.load_failed", "assistant_id", p.cfg.AssistantID, "error", err.Error())
	}

	if len(sources) == 0 {
		runCtx.LogDebug("memory.none_found", "assistant_id", p.cfg.AssistantID, "project_root", p.cfg.ProjectRoot)
		return nil
	}

	req.Instructions = Inject(req.Instructions, sources)

	for _, src := range sources {
		runCtx.LogDebug("memory.injected", "scope", string(src.Scope), "path", src.Path, "bytes", len(src.Content))
	}

	return nil
}

// Inject appends the memory sections to instructions and returns the result.
// Each source becomes a markdown section labeled with its scope and origin
// path; the file contents are reproduced verbatim. Sources are written in
// the order given, and the preamble tells the model that later sections take
// precedence, which puts project memory above user memory.
func Inject(instructions string, sources []Source) string {
	if len(sources) == 0 {
		return instructions
	}

	var sb strings.Builder
	sb.WriteString(instructions)

	if instructions != "" {
		sb.WriteString("\n\n")
	}

	sb.WriteString(sectionHeader)
	sb.WriteString("\n\nThe following memory files were loaded for this session. Follow their guidance. When sections conflict, later sections take precedence.")

	for _, src := range sources {
		sb.WriteString(fmt.Sprintf("\n\n## %s memory (%s)\n\n", scopeTitle(src.Scope), src.Path))
		sb.WriteString(src.Content)
	}

	return sb.String()
}

func scopeTitle(s Scope) string {
	switch s {
	case ScopeUser:
		return "User"
	case ScopeProject:
		return "Project"
	default:
		return string(s)
	}
}
