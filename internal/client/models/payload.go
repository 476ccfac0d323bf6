package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Payload is the serialized value carried by an outbox row and written to the
// remote store: {"dateId": "...", "text"|"mood": ..., "createdAt": N}.
type Payload struct {
	DateID    string  `json:"dateId"`
	Text      *string `json:"text,omitempty"`
	Mood      *int    `json:"mood,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

func DiaryPayload(dateID, text string, createdAt int64) Payload {
	return Payload{DateID: dateID, Text: &text, CreatedAt: createdAt}
}

func MoodPayload(dateID string, mood int, createdAt int64) Payload {
	return Payload{DateID: dateID, Mood: &mood, CreatedAt: createdAt}
}

func ReflectionPayload(dateID, text string, createdAt int64) Payload {
	return Payload{DateID: dateID, Text: &text, CreatedAt: createdAt}
}

// Encode returns the JSON form stored in OutboxOperation.PayloadJSON.
func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(b), nil
}

// DecodePayload parses a stored payload.
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: bad payload: %w", common.ErrValidation, err)
	}
	if p.DateID == "" {
		return Payload{}, fmt.Errorf("%w: payload without dateId", common.ErrValidation)
	}
	return p, nil
}

// TextValue returns the text field or "".
func (p Payload) TextValue() string {
	if p.Text == nil {
		return ""
	}
	return *p.Text
}

// MoodValue returns the mood field or 0.
func (p Payload) MoodValue() int {
	if p.Mood == nil {
		return 0
	}
	return *p.Mood
}

// Node renders p as the value written at a remote path.
func (p Payload) Node() map[string]any {
	n := map[string]any{
		"dateId":    p.DateID,
		"createdAt": p.CreatedAt,
	}
	if p.Text != nil {
		n["text"] = *p.Text
	}
	if p.Mood != nil {
		n["mood"] = *p.Mood
	}
	return n
}

// PayloadFromNode is the inverse of Node for values read back from the
// remote store, where numbers may arrive as float64.
func PayloadFromNode(n map[string]any) (Payload, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: bad node: %w", common.ErrValidation, err)
	}
	return DecodePayload(string(b))
}
