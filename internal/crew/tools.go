package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vinayprograms/leadsynapse/internal/llm"
)

// concurrencyLimit caps concurrent tool executions. Search calls are I/O
// bound, so CPUs are oversubscribed 4x within [4, 32].
var concurrencyLimit = func() int {
	limit := runtime.NumCPU() * 4
	if limit < 4 {
		limit = 4
	}
	if limit > 32 {
		limit = 32
	}
	return limit
}()

// applyToolTimeout bounds a tool call unless the context already has a
// shorter deadline.
func (c *Crew) applyToolTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.ToolTimeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.cfg.ToolTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.ToolTimeout)
}

func (c *Crew) executeTool(ctx context.Context, agent *Agent, tc llm.ToolCallResponse) (interface{}, error) {
	start := time.Now()
	ctx, cancel := c.applyToolTimeout(ctx)
	defer cancel()

	c.logger.ToolCall(tc.Name, agent.Name)

	var (
		result interface{}
		err    error
	)
	switch {
	case !c.registry.Has(tc.Name):
		err = fmt.Errorf("tool not found: %s", tc.Name)
	case !agent.hasTool(tc.Name):
		err = fmt.Errorf("tool %s is not available to agent %s", tc.Name, agent.Name)
	default:
		result, err = c.registry.Execute(ctx, tc.Name, tc.Args)
	}

	c.logger.ToolResult(tc.Name, time.Since(start), err)

	if err != nil {
		if c.OnToolError != nil {
			c.OnToolError(tc.Name, tc.Args, err, agent.Name)
		}
		return nil, err
	}
	if c.OnToolCall != nil {
		c.OnToolCall(tc.Name, tc.Args, result, agent.Name)
	}
	return result, nil
}

func toolContent(result interface{}, err error) string {
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	switch v := result.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// executeToolsParallel runs the tool calls concurrently and returns the tool
// messages in request order. Tool failures become error text for the model.
func (c *Crew) executeToolsParallel(ctx context.Context, agent *Agent, calls []llm.ToolCallResponse) []llm.Message {
	messages := make([]llm.Message, len(calls))
	if len(calls) == 1 {
		result, err := c.executeTool(ctx, agent, calls[0])
		messages[0] = llm.Message{Role: "tool", ToolCallID: calls[0].ID, Content: toolContent(result, err)}
		return messages
	}

	var g errgroup.Group
	g.SetLimit(concurrencyLimit)
	for i, tc := range calls {
		g.Go(func() error {
			result, err := c.executeTool(ctx, agent, tc)
			messages[i] = llm.Message{Role: "tool", ToolCallID: tc.ID, Content: toolContent(result, err)}
			return nil
		})
	}
	_ = g.Wait()
	return messages
}
