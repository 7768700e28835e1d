package external

import (
	"fmt"

	"github.com/rdvcore/core/internal/events"
)

// field is a label/value pair rendered into a channel-specific attachment.
type field struct {
	Name  string
	Value string
}

// summary is the domain-rendered form of an event, shared by the Slack,
// Discord and email notifiers so each only has to format it for its own
// wire shape.
type summary struct {
	Title  string
	Body   string
	Fields []field
}

// summarize builds a human-readable summary of event. Orchestrator
// Insight events (stall detection, the only events the Monitoring Loop
// currently routes above medium severity) get a title and field set
// describing the orchestrator/session/insight involved rather than the
// bare event envelope; anything else falls back to a generic rendering
// of the event's own fields and payload.
func summarize(event events.Event) summary {
	if event.Type == events.EventSessionStalled {
		return summarizeStall(event)
	}
	return summarizeGeneric(event)
}

func summarizeStall(event events.Event) summary {
	severity, _ := event.Payload["severity"].(string)
	description, _ := event.Payload["description"].(string)
	sessionID, _ := event.Payload["session_id"].(string)
	orchestratorID, _ := event.Payload["orchestrator_id"].(string)
	insightID, _ := event.Payload["insight_id"].(string)

	fields := []field{
		{Name: "Severity", Value: titleCase(severity)},
		{Name: "Orchestrator", Value: orchestratorID},
	}
	if sessionID != "" {
		fields = append(fields, field{Name: "Session", Value: sessionID})
	}
	if insightID != "" {
		fields = append(fields, field{Name: "Insight", Value: insightID})
	}

	if description == "" {
		description = "A session monitored by this orchestrator has stalled."
	}

	return summary{
		Title:  fmt.Sprintf("Session stalled (%s)", titleCase(severity)),
		Body:   description,
		Fields: fields,
	}
}

func summarizeGeneric(event events.Event) summary {
	fields := []field{
		{Name: "Type", Value: string(event.Type)},
		{Name: "Source", Value: event.Source},
		{Name: "Priority", Value: priorityString(event.Priority)},
	}
	if event.Target != "" {
		fields = append(fields, field{Name: "Target", Value: event.Target})
	}
	for k, v := range event.Payload {
		fields = append(fields, field{Name: k, Value: fmt.Sprintf("%v", v)})
	}
	return summary{
		Title:  fmt.Sprintf("%s event", event.Type),
		Body:   fmt.Sprintf("Event ID: %s", event.ID),
		Fields: fields,
	}
}

func titleCase(s string) string {
	if s == "" {
		return "unknown"
	}
	return string(s[0]-32) + s[1:]
}
