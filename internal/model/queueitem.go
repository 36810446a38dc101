package model

import (
	"encoding/json"
	"time"
)

// QueueItem is the unit of scheduled work admitted to the Priority Queue.
// Data is opaque to the queue itself; the Queue Manager inspects
// Timestamp/LastAttempt/Attempts only during reaping.
type QueueItem struct {
	ID          string                 `json:"id"`
	Data        map[string]interface{} `json:"data"`
	Priority    Priority               `json:"priority"`
	Attempts    int                    `json:"attempts"`
	Timestamp   time.Time              `json:"timestamp"`
	LastAttempt time.Time              `json:"lastAttempt,omitempty"`
}

// queueItemWire is the on-the-wire representation; Priority is encoded by
// name so the serialized form is self-describing, per spec.md §4.A.
type queueItemWire struct {
	ID          string                 `json:"id"`
	Data        map[string]interface{} `json:"data"`
	Priority    string                 `json:"priority"`
	Attempts    int                    `json:"attempts"`
	Timestamp   time.Time              `json:"timestamp"`
	LastAttempt time.Time              `json:"lastAttempt,omitempty"`
}

// Marshal serializes the item to its self-describing wire form.
func (qi *QueueItem) Marshal() ([]byte, error) {
	w := queueItemWire{
		ID:          qi.ID,
		Data:        qi.Data,
		Priority:    qi.Priority.String(),
		Attempts:    qi.Attempts,
		Timestamp:   qi.Timestamp,
		LastAttempt: qi.LastAttempt,
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalQueueItem parses the wire form. A malformed payload is a
// SerializationError per spec.md §7 — the caller decides how to react,
// since the item has already been popped off the queue.
func UnmarshalQueueItem(b []byte) (*QueueItem, error) {
	var w queueItemWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, ErrSerialization
	}
	pr, err := ParsePriority(w.Priority)
	if err != nil {
		return nil, ErrSerialization
	}
	if w.ID == "" {
		return nil, ErrSerialization
	}
	return &QueueItem{
		ID:          w.ID,
		Data:        w.Data,
		Priority:    pr,
		Attempts:    w.Attempts,
		Timestamp:   w.Timestamp,
		LastAttempt: w.LastAttempt,
	}, nil
}

// Clone returns a deep-enough copy safe to mutate (used by the reaper when
// producing a retry copy).
func (qi *QueueItem) Clone() *QueueItem {
	data := make(map[string]interface{}, len(qi.Data))
	for k, v := range qi.Data {
		data[k] = v
	}
	return &QueueItem{
		ID:          qi.ID,
		Data:        data,
		Priority:    qi.Priority,
		Attempts:    qi.Attempts,
		Timestamp:   qi.Timestamp,
		LastAttempt: qi.LastAttempt,
	}
}
