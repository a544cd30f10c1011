package publishers

import (
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"

	"github.com/bytedance/sonic"
)

// EventLookupCompleted is emitted after every aggregation run.
const EventLookupCompleted = "logo.lookup.completed"

// Event represents the payload published downstream.
type Event struct {
	Type        string              `json:"type"`
	Lookup      domain.LookupRecord `json:"lookup"`
	PublishedAt time.Time           `json:"published_at"`
}

// NewLookupEvent wraps a finished lookup for delivery.
func NewLookupEvent(rec domain.LookupRecord) Event {
	return Event{
		Type:        EventLookupCompleted,
		Lookup:      rec,
		PublishedAt: time.Now().UTC(),
	}
}

// encode renders the wire form shared by the queue and topic publishers.
func (e Event) encode() (string, error) {
	return sonic.MarshalString(e)
}

// attributes are the routing hints attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"domain":     e.Lookup.Domain,
	}
}
