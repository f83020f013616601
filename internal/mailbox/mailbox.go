// Package mailbox reads user correspondence from a message store: Gmail through
// its REST API, or a single RFC 822 file for local runs.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// ErrAttachmentNotFound is returned when an attachment reference does not
// resolve.
var ErrAttachmentNotFound = errors.New("attachment not found")

// Store lists, fetches and resolves attachments for one user's mailbox.
type Store interface {
	// List returns up to max message ids matching query, newest first.
	List(ctx context.Context, query string, max int) ([]string, error)
	// Message fetches one message. An error here is fatal for that message.
	Message(ctx context.Context, id string) (*model.RawMessage, error)
	// Attachment resolves an attachment reference to its raw bytes.
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// decodeBody decodes a base64url payload as Gmail sends it. Some clients pad,
// some do not, and a few messages arrive in the standard alphabet.
func decodeBody(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(data); err == nil {
			return b, nil
		}
	}
	_, err := base64.URLEncoding.DecodeString(data)
	return nil, err
}
