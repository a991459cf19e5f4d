package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is the server-assigned task identifier. It is opaque to the client:
// servers may send it as a JSON string or a JSON number, and the client only
// compares it and puts its text form into URLs.
type ID string

func (id ID) String() string { return string(id) }

// Task is the domain model for a to-do entry. The client copy is a cache of
// server state.
type Task struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`

	// numericID is set when the id arrived as a JSON number, so it is written
	// back the same way.
	numericID bool
}

type taskJSON struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	Completed bool            `json:"completed"`
}

// UnmarshalJSON accepts both `"abc"` and `42` as the id.
func (t *Task) UnmarshalJSON(b []byte) error {
	var w taskJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id, numeric, err := parseID(w.ID)
	if err != nil {
		return err
	}
	*t = Task{ID: id, Title: w.Title, Completed: w.Completed, numericID: numeric}
	return nil
}

// MarshalJSON writes the id in the form it was received in.
func (t Task) MarshalJSON() ([]byte, error) {
	var id json.RawMessage
	if t.numericID {
		id = json.RawMessage(t.ID)
	} else {
		b, err := json.Marshal(string(t.ID))
		if err != nil {
			return nil, err
		}
		id = b
	}
	return json.Marshal(taskJSON{ID: id, Title: t.Title, Completed: t.Completed})
}

func parseID(raw json.RawMessage) (ID, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, fmt.Errorf("task id: %w", err)
		}
		return ID(s), false, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false, fmt.Errorf("task id: %w", err)
	}
	return ID(n.String()), true, nil
}

// Stats counts completed and pending tasks.
func Stats(tasks []Task) (done, pending int) {
	for _, t := range tasks {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
