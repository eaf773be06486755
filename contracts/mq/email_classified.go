package mq

import "time"

// EmailClassifiedPayload email.classified 事件：新记录已分类并入库
type EmailClassifiedPayload struct {
	EmailID    string    `json:"email_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// EmailRecategorizedPayload email.recategorized 事件：用户手动修改分类
type EmailRecategorizedPayload struct {
	EmailID   string    `json:"email_id"`
	Category  string    `json:"category"`
	ChangedAt time.Time `json:"changed_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// EmailDeletedPayload email.deleted 事件
type EmailDeletedPayload struct {
	EmailID   string    `json:"email_id"`
	DeletedAt time.Time `json:"deleted_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}
