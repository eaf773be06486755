package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"mailclassifier/internal/model"
)

// Instruction is the fixed system context sent with every classification request.
const Instruction = `You are an email classification assistant. Classify emails into exactly one of these categories:
- urgent: Time-sensitive emails requiring immediate attention, deadlines, important meetings
- promotional: Marketing emails, advertisements, sales, newsletters, offers
- personal: Personal communications from friends, family, social invitations
- work: Work-related emails, project updates, team communications, professional matters
- spam: Unwanted emails, suspicious content, phishing attempts

Respond ONLY with a JSON object in this exact format:
{"category": "one_of_the_categories", "confidence": 0.95, "reason": "brief explanation"}

The object must contain exactly the keys "category", "confidence" and "reason", nothing else.
The confidence should be a number between 0 and 1.`

const requestPrefix = "Classify this email:\n\n"

// Prompt is the pair of texts sent to the gateway for one email.
type Prompt struct {
	Instruction string
	Request     string
}

// BuildPrompt composes the labelled email text. It performs no validation and is deterministic.
func BuildPrompt(in model.EmailInput) Prompt {
	var b strings.Builder
	b.WriteString("From: ")
	b.WriteString(in.Sender)
	b.WriteString("\nSubject: ")
	b.WriteString(in.Subject)
	if strings.TrimSpace(in.Snippet) != "" {
		b.WriteString("\nPreview: ")
		b.WriteString(in.Snippet)
	}
	if strings.TrimSpace(in.Content) != "" {
		b.WriteString("\n\nContent: ")
		b.WriteString(in.Content)
	}

	return Prompt{
		Instruction: Instruction,
		Request:     requestPrefix + strings.TrimSpace(b.String()),
	}
}

// Key identifies the prompt for caching.
func (p Prompt) Key() string {
	h := sha256.New()
	h.Write([]byte(p.Instruction))
	h.Write([]byte{0})
	h.Write([]byte(p.Request))
	return hex.EncodeToString(h.Sum(nil))
}
