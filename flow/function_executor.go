package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/tool"
)

// FunctionExecutor executes a batch of function/tool calls, possibly in
// parallel, and emits function response events through the provided emit
// callback. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and convert to error responses)
//   - Emit exactly one FunctionResponse event per incoming FunctionCall
//   - Apply ToolContext accumulated actions to emitted events
//
// The emit callback is responsible for persistence synchronization (resume
// handling).
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int           // 0 or <1 => no explicit limit (len(fnCalls))
	PreserveOrder  bool          // if true, buffer results and emit in original order
	LogStartEvents bool          // log a start line per function
	ToolTimeout    time.Duration // per-call deadline; 0 => none
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		ev := e.runCall(runCtx, agent, toolRegistry, fnCalls[0])
		if err := emit(ev); err != nil {
			runCtx.LogError("agent.function.emit_failed", "function", fnCalls[0].Name, "error", err.Error())
		}
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	// Each goroutine writes only its own index; Wait establishes the
	// happens-before for the ordered emit pass below.
	results := make([]core.Event, n)

	var (
		emitMu sync.Mutex // serializes unordered emits
		wg     sync.WaitGroup
	)

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()

	for i := range fnCalls {
		if runCtx.Context.Err() != nil { // pre-check cancellation
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Context.Err() != nil {
				return
			}

			ev := e.runCall(runCtx, agent, toolRegistry, fc)

			if e.cfg.PreserveOrder {
				results[idx] = ev
				return
			}

			emitMu.Lock()
			defer emitMu.Unlock()

			if err := emit(ev); err != nil {
				runCtx.LogError("agent.function.emit_failed", "function", fc.Name, "error", err.Error())
			}
		}(i, fnCalls[i])
	}

	wg.Wait()

	if e.cfg.PreserveOrder {
		for i := 0; i < n; i++ {
			if results[i].ID == "" { // call skipped due to cancellation
				continue
			}
			if err := emit(results[i]); err != nil {
				runCtx.LogError("agent.function.emit_failed", "function", fnCalls[i].Name, "error", err.Error())
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch_complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// runCall executes one function call with panic isolation and returns the
// function response event with accumulated tool actions applied.
func (e *parallelFunctionExecutor) runCall(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fc core.FunctionCall) core.Event {
	if e.cfg.ToolTimeout > 0 {
		// Tools read their deadline from the run context, so the per-call
		// deadline needs a cloned context that expires independently.
		ctx, cancel := context.WithTimeout(runCtx.Context, e.cfg.ToolTimeout)
		defer cancel()

		child := runCtx.Clone()
		child.Context = ctx
		runCtx = child
	}

	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
			}
		}()

		result, err = executeTool(toolRegistry, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&ev)

	return ev
}

// panicError converts a recovered panic value to an error, keeping the stack
// for logging.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup and argument decoding.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	var argMap map[string]any
	if args == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return impl.Call(toolCtx, argMap)
}
