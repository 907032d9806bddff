package requests

import "time"

// StreamCommand is a frame sent by a participant over the session stream.
type StreamCommand struct {
	Type      string     `json:"type" validate:"required,oneof=start_session end_session send_message"`
	Reason    string     `json:"reason,omitempty"`
	Text      string     `json:"text,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
