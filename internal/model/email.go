package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrInvalidCategory is returned for any value outside the five known categories.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidInput is returned when required email fields are missing.
	ErrInvalidInput = errors.New("invalid email input")
)

// Category is the closed set of labels an email can carry.
type Category string

const (
	CategoryUrgent      Category = "urgent"
	CategoryPromotional Category = "promotional"
	CategoryPersonal    Category = "personal"
	CategoryWork        Category = "work"
	CategorySpam        Category = "spam"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryUrgent,
	CategoryPromotional,
	CategoryPersonal,
	CategoryWork,
	CategorySpam,
}

// ParseCategory matches s exactly (case-sensitive) against the known categories.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string {
	return string(c)
}

// UnmarshalText rejects unknown categories so that decoded values are always valid.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// EmailInput 分类请求的邮件字段
type EmailInput struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
}

// Validate checks the required fields.
func (in EmailInput) Validate() error {
	if strings.TrimSpace(in.Sender) == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	return nil
}

// SnippetLength is the preview length derived from content when no snippet is supplied.
const SnippetLength = 150

// WithDerivedSnippet fills an empty snippet with the first SnippetLength characters of content.
func (in EmailInput) WithDerivedSnippet() EmailInput {
	if in.Snippet != "" || in.Content == "" {
		return in
	}
	if utf8.RuneCountInString(in.Content) <= SnippetLength {
		in.Snippet = in.Content
		return in
	}
	in.Snippet = string([]rune(in.Content)[:SnippetLength])
	return in
}

// Verdict 分类结果
type Verdict struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

// EmailRecord 持久化的邮件记录；reason 不落库
type EmailRecord struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet,omitempty"`
	Content    string    `json:"content,omitempty"`
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEmailRecord builds the insertable part of a record from an input and its verdict.
func NewEmailRecord(in EmailInput, v Verdict) *EmailRecord {
	return &EmailRecord{
		Sender:     in.Sender,
		Subject:    in.Subject,
		Snippet:    in.Snippet,
		Content:    in.Content,
		Category:   v.Category,
		Confidence: v.Confidence,
	}
}

// CategoryCount is one row of the per-category aggregation.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// EmailStats 总数 + 每个分类的数量（五个分类全部列出，没有记录的为 0）
type EmailStats struct {
	Total      int             `json:"total"`
	Categories []CategoryCount `json:"categories"`
}
