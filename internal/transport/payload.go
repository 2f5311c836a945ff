// Package transport implements the boundary between the monitor core
// and the processes around it: the dispatch wire format, the HTTP
// client the CLI uses, the relay server and the websocket notification
// hub. Malformed payloads are rejected here and never reach the
// registries.
package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oselabs/webrelay/internal/events"
)

// Action is a wire-level command understood by the browser-side agent.
// The set is closed; extending it means adding a constant and a case in
// the intent switch.
type Action string

const (
	ActionSelectProject Action = "SELECT_PROJECT"
	ActionSelectChat    Action = "SELECT_CHAT"
	ActionFillPrompt    Action = "FILL_PROMPT"
	ActionGetResponse   Action = "GET_RESPONSE"
	ActionDownloadFile  Action = "DOWNLOAD_FILE"
)

// Intent is a typed command the CLI can relay to the browser agent.
type Intent interface {
	// Action returns the wire action the intent maps to.
	Action() Action
}

// SelectProject asks the agent to click into the named project.
type SelectProject struct {
	ProjectName string `json:"project_name"`
	Selector    string `json:"selector,omitempty"`
}

func (SelectProject) Action() Action { return ActionSelectProject }

// SelectChat asks the agent to open the chat with the given title.
type SelectChat struct {
	ChatTitle string `json:"chat_title"`
	Selector  string `json:"selector,omitempty"`
}

func (SelectChat) Action() Action { return ActionSelectChat }

// FillPrompt asks the agent to type and submit prompt text.
type FillPrompt struct {
	PromptText string `json:"prompt_text"`
	Selector   string `json:"selector,omitempty"`
}

func (FillPrompt) Action() Action { return ActionFillPrompt }

// GetResponse asks the agent to read the latest assistant response.
type GetResponse struct {
	Selector string        `json:"selector,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

func (GetResponse) Action() Action { return ActionGetResponse }

// DownloadFile asks the agent to download a URL through the browser.
type DownloadFile struct {
	URL            string `json:"url"`
	Filename       string `json:"filename,omitempty"`
	ConflictAction string `json:"conflict_action,omitempty"`
	SaveAs         bool   `json:"save_as,omitempty"`
}

func (DownloadFile) Action() Action { return ActionDownloadFile }

// Target addresses a specific browser extension and tab.
type Target struct {
	ExtensionID string `json:"extensionId"`
	TabID       int    `json:"tabId"`
}

// DispatchMessage is the command half of a dispatch request.
type DispatchMessage struct {
	Action        Action          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId"`
}

// DispatchRequest is the body of POST /api/dispatch.
type DispatchRequest struct {
	Target  Target          `json:"target"`
	Message DispatchMessage `json:"message"`
}

// DispatchAck is the relay's response to a dispatch request.
type DispatchAck struct {
	CorrelationID string `json:"correlationId"`
	Accepted      bool   `json:"accepted"`
	Error         string `json:"error,omitempty"`
}

// EncodeDispatch builds the wire request for an intent. A missing
// correlation id gets a fresh one.
func EncodeDispatch(intent Intent, target Target, correlationID string) (DispatchRequest, error) {
	if correlationID == "" {
		correlationID = events.NewCorrelationID()
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return DispatchRequest{}, fmt.Errorf("failed to encode intent payload; %w", err)
	}

	return DispatchRequest{
		Target: target,
		Message: DispatchMessage{
			Action:        intent.Action(),
			Payload:       payload,
			CorrelationID: correlationID,
		},
	}, nil
}

// DecodeIntent maps a wire message back onto its typed intent. Unknown
// actions are a data error, rejected at this boundary.
func DecodeIntent(msg DispatchMessage) (Intent, error) {
	decode := func(v any) error {
		if len(msg.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Payload, v); err != nil {
			return fmt.Errorf("malformed %s payload; %w", msg.Action, err)
		}
		return nil
	}

	switch msg.Action {
	case ActionSelectProject:
		var v SelectProject
		if err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionSelectChat:
		var v SelectChat
		if err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionFillPrompt:
		var v FillPrompt
		if err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionGetResponse:
		var v GetResponse
		if err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionDownloadFile:
		var v DownloadFile
		if err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
}

// TrainingRequest is the body of POST /api/training/enable. Training
// requests are handled by the relay itself, never forwarded to the
// browser agent.
type TrainingRequest struct {
	Website       string `json:"website"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// TrainingAck acknowledges an enabled training session.
type TrainingAck struct {
	SessionID        string `json:"sessionId"`
	Website          string `json:"website"`
	ExistingPatterns int    `json:"existingPatterns"`
	CorrelationID    string `json:"correlationId"`
}

// EventReport is the wire form of an integration event, as POSTed by
// actors to /api/events. Latency is carried in milliseconds; the field
// is fractional so sub-millisecond measurements survive the round trip.
type EventReport struct {
	ID            string         `json:"id,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp,omitempty"`
	Type          string         `json:"type"`
	Source        string         `json:"source"`
	Target        string         `json:"target,omitempty"`
	Status        string         `json:"status,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	LatencyMillis float64        `json:"latency_ms,omitempty"`
	ErrorCount    int            `json:"error_count,omitempty"`
	RetryCount    int            `json:"retry_count,omitempty"`
}

// DecodeEventReport validates a wire report and maps it onto an
// IntegrationEvent. Validation failures here are the only rejection
// path; anything that decodes cleanly is accepted by the monitor.
func DecodeEventReport(r EventReport) (events.IntegrationEvent, error) {
	if r.Source == "" {
		return events.IntegrationEvent{}, fmt.Errorf("event report missing source")
	}

	eventType := events.EventType(r.Type)
	if !eventType.Valid() {
		return events.IntegrationEvent{}, fmt.Errorf("unknown event type %q", r.Type)
	}

	ev := events.IntegrationEvent{
		ID:            r.ID,
		CorrelationID: r.CorrelationID,
		Timestamp:     r.Timestamp,
		Type:          eventType,
		Source:        r.Source,
		Target:        r.Target,
		Status:        r.Status,
	}
	if r.Payload != nil {
		ev.Payload = r.Payload
	}
	if r.LatencyMillis > 0 || r.ErrorCount > 0 || r.RetryCount > 0 {
		ev.Metadata = &events.Metadata{
			Latency:    time.Duration(r.LatencyMillis * float64(time.Millisecond)),
			ErrorCount: r.ErrorCount,
			RetryCount: r.RetryCount,
		}
	}
	return ev, nil
}

// EncodeEventReport maps an IntegrationEvent onto its wire form.
func EncodeEventReport(ev events.IntegrationEvent) EventReport {
	r := EventReport{
		ID:            ev.ID,
		CorrelationID: ev.CorrelationID,
		Timestamp:     ev.Timestamp,
		Type:          string(ev.Type),
		Source:        ev.Source,
		Target:        ev.Target,
		Status:        ev.Status,
	}
	if m, ok := ev.Payload.(map[string]any); ok {
		r.Payload = m
	}
	if ev.Metadata != nil {
		r.LatencyMillis = float64(ev.Metadata.Latency) / float64(time.Millisecond)
		r.ErrorCount = ev.Metadata.ErrorCount
		r.RetryCount = ev.Metadata.RetryCount
	}
	return r
}
