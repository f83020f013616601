// Package normalize turns raw message-store payloads into bounded plain-text
// documents ready for the extraction oracle.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dharsanguruparan/billsync/internal/model"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
	mimePDF   = "application/pdf"

	// DefaultPageLimit is how many leading pages of each PDF attachment are read.
	DefaultPageLimit = 3

	attachmentSeparator = "\n\n"
)

// ErrMalformedMessage is returned when a message carries nothing the normalizer
// can recover, such as a nil payload or an empty header list.
var ErrMalformedMessage = errors.New("malformed message")

// AttachmentSource resolves an attachment reference to raw bytes.
type AttachmentSource interface {
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// TextExtractor pulls plain text out of a binary document, reading at most
// pageLimit pages.
type TextExtractor interface {
	Extract(data []byte, pageLimit int) (string, error)
}

// AttachmentResult is the outcome of extracting one PDF attachment. Err is set
// when fetching or parsing failed, in which case Text is empty.
type AttachmentResult struct {
	AttachmentID string
	Filename     string
	Text         string
	Err          error
}

// Normalizer builds Documents from RawMessages.
type Normalizer struct {
	extractor TextExtractor
	pageLimit int
}

// New returns a Normalizer. A non-positive pageLimit falls back to DefaultPageLimit.
func New(extractor TextExtractor, pageLimit int) *Normalizer {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Normalizer{extractor: extractor, pageLimit: pageLimit}
}

// Normalize produces the Document for msg. Attachment failures never fail the
// document; they are logged and contribute no text. src may be nil, in which
// case attachments are skipped.
func (n *Normalizer) Normalize(ctx context.Context, msg *model.RawMessage, src AttachmentSource) (model.Document, error) {
	if msg == nil {
		return model.Document{}, fmt.Errorf("normalize: %w: nil message", ErrMalformedMessage)
	}
	if len(msg.Headers) == 0 {
		return model.Document{}, fmt.Errorf("normalize %s: %w: no headers", msg.ID, ErrMalformedMessage)
	}

	body := SelectBody(msg)

	var attachments strings.Builder
	for _, res := range n.ExtractAttachments(ctx, msg, src) {
		if res.Err != nil {
			slog.Warn("Attachment extraction failed.", "messageId", msg.ID, "attachmentId", res.AttachmentID, "filename", res.Filename, "error", res.Err)
			continue
		}
		attachments.WriteString(attachmentSeparator)
		attachments.WriteString(res.Text)
	}

	return model.NewDocument(
		msg.ID,
		msg.Header("Subject"),
		msg.Header("From"),
		msg.Header("Date"),
		body,
		attachments.String(),
	), nil
}

// SelectBody applies the body preference cascade: inline payload, then the first
// text/plain part, then the first text/html part with markup stripped.
func SelectBody(msg *model.RawMessage) string {
	if msg.Body != "" {
		return msg.Body
	}
	for _, p := range msg.Parts {
		if p.MimeType == mimePlain {
			return p.Data
		}
	}
	for _, p := range msg.Parts {
		if p.MimeType == mimeHTML {
			return StripHTML(p.Data)
		}
	}
	return ""
}

// ExtractAttachments runs text extraction over every PDF part that carries an
// attachment reference. Results are returned in part order, one per attempted
// attachment.
func (n *Normalizer) ExtractAttachments(ctx context.Context, msg *model.RawMessage, src AttachmentSource) []AttachmentResult {
	if src == nil || n.extractor == nil {
		return nil
	}
	var results []AttachmentResult
	for _, p := range msg.Parts {
		if p.MimeType != mimePDF || p.AttachmentID == "" {
			continue
		}
		res := AttachmentResult{AttachmentID: p.AttachmentID, Filename: p.Filename}
		res.Text, res.Err = n.extractOne(ctx, msg.ID, p, src)
		results = append(results, res)
	}
	return results
}

func (n *Normalizer) extractOne(ctx context.Context, messageID string, p model.Part, src AttachmentSource) (string, error) {
	data, err := src.Attachment(ctx, messageID, p.AttachmentID)
	if err != nil {
		return "", fmt.Errorf("fetch attachment: %w", err)
	}
	text, err := n.extractor.Extract(data, n.pageLimit)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}
