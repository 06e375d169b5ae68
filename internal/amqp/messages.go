package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types double as routing keys on the topic exchange.
const (
	EventReservationCreated = "reservation.created"
	EventReservationUpdated = "reservation.updated"
	EventReservationDeleted = "reservation.deleted"
	EventGuestDeleted       = "guest.deleted"
)

// ReservationEvent announces a committed change. It carries identifiers
// only; consumers read current state from the store.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID int64     `json:"reservation_id,omitempty"`
	GuestID       int64     `json:"guest_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewReservationEvent creates an event stamped with the current time.
func NewReservationEvent(eventType string, reservationID, guestID int64) *ReservationEvent {
	return &ReservationEvent{
		Type:          eventType,
		ReservationID: reservationID,
		GuestID:       guestID,
		Timestamp:     time.Now(),
	}
}

func (m *ReservationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReservationEventFromJSON decodes an event and rejects unknown types.
func ReservationEventFromJSON(data []byte) (*ReservationEvent, error) {
	var msg ReservationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventReservationCreated, EventReservationUpdated, EventReservationDeleted, EventGuestDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
