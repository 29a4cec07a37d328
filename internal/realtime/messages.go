package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// partyFrame is the wire shape shared by chat lines and application events.
type partyFrame struct {
	Contents       string `json:"contents"`
	Deleted        bool   `json:"deleted"`
	MessageID      string `json:"messageId"`
	PartyRecruitID int64  `json:"partyRecruitId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	Application    bool   `json:"application"`
	StatusType     string `json:"statusType"`
	Type           string `json:"type"`
	Timestamp      int64  `json:"timestamp"`
}

// Inbound is a decoded party topic frame: ChatMessage or ApplicationEvent.
type Inbound interface {
	inbound()
}

type ChatMessage struct {
	MessageID      string
	PartyRecruitID int64
	SenderID       string
	SenderName     string
	Contents       string
	Deleted        bool
	StatusType     string
	Type           string
	Timestamp      int64
}

func (ChatMessage) inbound() {}

// Time converts the millisecond timestamp.
func (m ChatMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// ApplicationEvent carries an application document pushed on a party topic.
// Application is nil when the envelope had none.
type ApplicationEvent struct {
	PartyRecruitID int64
	StatusType     string
	Application    json.RawMessage
}

func (ApplicationEvent) inbound() {}

type applicationEnvelope struct {
	Application json.RawMessage `json:"application"`
}

func DecodePartyFrame(body []byte) (Inbound, error) {
	var frame partyFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		return nil, fmt.Errorf("decode party frame: %w", err)
	}
	if frame.Application {
		var envelope applicationEnvelope
		if err := json.Unmarshal([]byte(frame.Contents), &envelope); err != nil {
			return nil, fmt.Errorf("decode application envelope: %w", err)
		}
		event := ApplicationEvent{PartyRecruitID: frame.PartyRecruitID, StatusType: frame.StatusType}
		if len(envelope.Application) > 0 && string(envelope.Application) != "null" {
			event.Application = envelope.Application
		}
		return event, nil
	}
	return ChatMessage{
		MessageID:      frame.MessageID,
		PartyRecruitID: frame.PartyRecruitID,
		SenderID:       frame.SenderID,
		SenderName:     frame.SenderName,
		Contents:       frame.Contents,
		Deleted:        frame.Deleted,
		StatusType:     frame.StatusType,
		Type:           frame.Type,
		Timestamp:      frame.Timestamp,
	}, nil
}

const StatusRejected = "REJECTED"

// Notification is pushed on the per-user queue when an application changes.
type Notification struct {
	StatusType     string `json:"statusType"`
	PartyRecruitID int64  `json:"partyRecruitId"`
}

func DecodeNotification(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}
