package models

import (
	"sort"
	"time"
)

type Message struct {
	ID            string     `json:"id" bson:"_id"`
	AppointmentID string     `json:"appointmentId" bson:"appointmentId"`
	SenderID      string     `json:"senderId" bson:"senderId"`
	SenderName    string     `json:"senderName" bson:"senderName"`
	SenderRole    string     `json:"senderRole" bson:"senderRole"`
	Text          string     `json:"text" bson:"text"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	Timestamp     *time.Time `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
}

// SortMessages orders messages by their client-assigned creation time.
// Ties fall back to the store-assigned ID so the order is stable across observers.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

func CloneMessages(messages []Message) []Message {
	clone := make([]Message, len(messages))
	copy(clone, messages)
	for i := range clone {
		clone[i].Timestamp = cloneTime(messages[i].Timestamp)
	}
	return clone
}
