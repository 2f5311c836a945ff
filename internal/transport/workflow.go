package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/oselabs/webrelay/internal/events"
)

// Workflow describes a full prompt round trip: select a project,
// optionally open a chat, submit the prompt and read the response.
type Workflow struct {
	ProjectName string
	ChatTitle   string
	PromptText  string
}

// StepResult records the outcome of one workflow step.
type StepResult struct {
	Action   Action        `json:"action"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// WorkflowResult aggregates step outcomes. All steps share one
// correlation id so the round trip tracks as a single flow.
type WorkflowResult struct {
	CorrelationID string       `json:"correlation_id"`
	Steps         []StepResult `json:"steps"`
	Completed     bool         `json:"completed"`
}

// RunWorkflow executes the workflow sequentially against the relay,
// stopping at the first failed step. Partial results are always
// returned alongside the error.
func (c *Client) RunWorkflow(ctx context.Context, target Target, wf Workflow) (*WorkflowResult, error) {
	if wf.PromptText == "" {
		return nil, fmt.Errorf("workflow requires prompt text")
	}

	result := &WorkflowResult{
		CorrelationID: events.NewCorrelationID(),
	}

	intents := []Intent{}
	if wf.ProjectName != "" {
		intents = append(intents, SelectProject{ProjectName: wf.ProjectName})
	}
	if wf.ChatTitle != "" {
		intents = append(intents, SelectChat{ChatTitle: wf.ChatTitle})
	}
	intents = append(intents,
		FillPrompt{PromptText: wf.PromptText},
		GetResponse{},
	)

	for _, intent := range intents {
		start := time.Now()
		_, err := c.Dispatch(ctx, target, intent, result.CorrelationID)
		step := StepResult{
			Action:   intent.Action(),
			Duration: time.Since(start),
		}
		if err != nil {
			step.Error = err.Error()
			result.Steps = append(result.Steps, step)
			return result, fmt.Errorf("workflow step %s failed; %w", intent.Action(), err)
		}
		result.Steps = append(result.Steps, step)
	}

	result.Completed = true
	return result, nil
}
