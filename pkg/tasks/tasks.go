// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// SpeechTask represents a speech synthesis job for one assistant turn.
type SpeechTask struct {
	TurnID    string `json:"turn_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}
