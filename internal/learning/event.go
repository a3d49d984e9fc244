package learning

import (
	"fmt"
	"time"
)

// EventType enumerates the recorded interaction kinds.
type EventType string

const (
	ContentGenerated    EventType = "content_generated"
	WorkflowInteraction EventType = "workflow_interaction"
	ResearchQuery       EventType = "research_query"
	VisualGenerated     EventType = "visual_generated"
	CampaignCompleted   EventType = "campaign_completed"
)

// Event is one append-only user-interaction fact. Events are never mutated
// after intake.
type Event struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionId"`
	UserID    string            `json:"userId,omitempty"`
	Type      EventType         `json:"eventType"`
	Data      EventData         `json:"eventData"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// EventData is a tagged union over the five event types: exactly one field
// is set, and it must agree with the event's Type.
type EventData struct {
	ContentGenerated    *ContentGeneratedData    `json:"contentGenerated,omitempty"`
	WorkflowInteraction *WorkflowInteractionData `json:"workflowInteraction,omitempty"`
	ResearchQuery       *ResearchQueryData       `json:"researchQuery,omitempty"`
	VisualGenerated     *VisualGeneratedData     `json:"visualGenerated,omitempty"`
	CampaignCompleted   *CampaignCompletedData   `json:"campaignCompleted,omitempty"`
}

type ContentGeneratedData struct {
	ContentType string `json:"contentType"`
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Tone        string `json:"tone,omitempty"`
	WordCount   int    `json:"wordCount,omitempty"`
}

type WorkflowInteractionData struct {
	Step       string `json:"step"`
	Action     string `json:"action"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

type ResearchQueryData struct {
	Query    string `json:"query"`
	Provider string `json:"provider"`
	Industry string `json:"industry,omitempty"`
}

type VisualGeneratedData struct {
	Prompt     string `json:"prompt"`
	Provider   string `json:"provider"`
	Style      string `json:"style,omitempty"`
	ImageCount int    `json:"imageCount"`
}

type CampaignCompletedData struct {
	CampaignID    string `json:"campaignId"`
	Industry      string `json:"industry,omitempty"`
	ContentPieces int    `json:"contentPieces"`
}

// Validate checks that the payload variant matches the event type and that
// no other variant is set alongside it.
func (e *Event) Validate() error {
	set := 0
	if e.Data.ContentGenerated != nil {
		set++
	}
	if e.Data.WorkflowInteraction != nil {
		set++
	}
	if e.Data.ResearchQuery != nil {
		set++
	}
	if e.Data.VisualGenerated != nil {
		set++
	}
	if e.Data.CampaignCompleted != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("event must carry exactly one payload variant, has %d", set)
	}

	var ok bool
	switch e.Type {
	case ContentGenerated:
		ok = e.Data.ContentGenerated != nil
	case WorkflowInteraction:
		ok = e.Data.WorkflowInteraction != nil
	case ResearchQuery:
		ok = e.Data.ResearchQuery != nil
	case VisualGenerated:
		ok = e.Data.VisualGenerated != nil
	case CampaignCompleted:
		ok = e.Data.CampaignCompleted != nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if !ok {
		return fmt.Errorf("payload variant does not match event type %s", e.Type)
	}
	return nil
}

// industry returns the payload's industry field where the variant has one.
func (e *Event) industry() string {
	switch {
	case e.Data.ContentGenerated != nil:
		return e.Data.ContentGenerated.Industry
	case e.Data.ResearchQuery != nil:
		return e.Data.ResearchQuery.Industry
	case e.Data.CampaignCompleted != nil:
		return e.Data.CampaignCompleted.Industry
	}
	return ""
}
