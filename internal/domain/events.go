package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType tags a broadcast event on the wire.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventQuestionNew      EventType = "question:new"
	EventQuestionVoted    EventType = "question:voted"
	EventQuestionAnswered EventType = "question:answered"
)

// Event is the closed set of messages fanned out to a room's sessions.
// Construct events through the New* functions so the wire tag is always set.
type Event interface {
	isEvent()
	EventType() EventType
}

// ConnectedEvent is sent to a session right after it joins a room.
type ConnectedEvent struct {
	Type        EventType `json:"type"`
	SessionID   uuid.UUID `json:"sessionId"`
	Connections int       `json:"connections"`
}

func (ConnectedEvent) isEvent()               {}
func (e ConnectedEvent) EventType() EventType { return e.Type }

func NewConnectedEvent(sessionID uuid.UUID, connections int) ConnectedEvent {
	return ConnectedEvent{Type: EventConnected, SessionID: sessionID, Connections: connections}
}

// QuestionNewEvent announces a freshly created question.
type QuestionNewEvent struct {
	Type     EventType `json:"type"`
	Question Question  `json:"question"`
}

func (QuestionNewEvent) isEvent()               {}
func (e QuestionNewEvent) EventType() EventType { return e.Type }

func NewQuestionNewEvent(q Question) QuestionNewEvent {
	return QuestionNewEvent{Type: EventQuestionNew, Question: q}
}

// QuestionVotedEvent carries the up-to-date vote count after a toggle.
type QuestionVotedEvent struct {
	Type       EventType `json:"type"`
	QuestionID uuid.UUID `json:"questionId"`
	Votes      int       `json:"votes"`
}

func (QuestionVotedEvent) isEvent()               {}
func (e QuestionVotedEvent) EventType() EventType { return e.Type }

func NewQuestionVotedEvent(questionID uuid.UUID, votes int) QuestionVotedEvent {
	return QuestionVotedEvent{Type: EventQuestionVoted, QuestionID: questionID, Votes: votes}
}

// QuestionAnsweredEvent marks a question as answered by the speaker.
type QuestionAnsweredEvent struct {
	Type       EventType `json:"type"`
	QuestionID uuid.UUID `json:"questionId"`
}

func (QuestionAnsweredEvent) isEvent()               {}
func (e QuestionAnsweredEvent) EventType() EventType { return e.Type }

func NewQuestionAnsweredEvent(questionID uuid.UUID) QuestionAnsweredEvent {
	return QuestionAnsweredEvent{Type: EventQuestionAnswered, QuestionID: questionID}
}

// EncodeEvent serializes an event for the wire.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
