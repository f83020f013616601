// Package model contains the value types shared across the ingestion, extraction
// and matching packages. None of them hold back-references, so they are safe to
// copy and hand between goroutines.
package model

import "unicode/utf8"

// MaxContentLength bounds Document.Content, measured in characters (runes) rather
// than bytes so multi-byte text is never split mid-character.
const MaxContentLength = 5000

// Document is the normalized plain-text view of an email or uploaded statement.
// Build it with NewDocument so Content always honours MaxContentLength.
type Document struct {
	ID             string `json:"id"`
	Subject        string `json:"subject"`
	Sender         string `json:"sender"`
	Date           string `json:"date"`
	BodyText       string `json:"bodyText"`
	AttachmentText string `json:"attachmentText,omitempty"`
	// Content is BodyText followed by AttachmentText, truncated to the first
	// MaxContentLength characters.
	Content string `json:"content"`
}

// NewDocument assembles a Document and computes its bounded Content.
func NewDocument(id, subject, sender, date, body, attachments string) Document {
	return Document{
		ID:             id,
		Subject:        subject,
		Sender:         sender,
		Date:           date,
		BodyText:       body,
		AttachmentText: attachments,
		Content:        Truncate(body+attachments, MaxContentLength),
	}
}

// Truncate returns the leading max characters of s. It never fails; when s is
// already short enough it is returned unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
