package mq

import "time"

// EmailReceivedPayload email.received 事件：待分类的邮件
type EmailReceivedPayload struct {
	MessageID  string    `json:"message_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet,omitempty"`
	Content    string    `json:"content,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
