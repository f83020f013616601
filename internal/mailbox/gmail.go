package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dharsanguruparan/billsync/internal/model"
)

const gmailUser = "me"

// gmailPageSize is the largest page the messages.list endpoint returns.
const gmailPageSize = 500

// GmailStore reads a mailbox through the Gmail API.
type GmailStore struct {
	svc *gmail.Service
}

// NewGmailStore builds a store over an authorized HTTP client.
func NewGmailStore(ctx context.Context, client *http.Client) (*GmailStore, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailStore{svc: svc}, nil
}

// List pages through messages.list until max ids are collected.
func (s *GmailStore) List(ctx context.Context, query string, max int) ([]string, error) {
	var (
		ids       []string
		pageToken string
	)
	for len(ids) < max {
		call := s.svc.Users.Messages.List(gmailUser).Q(query).MaxResults(int64(min(max-len(ids), gmailPageSize))).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// Message fetches the full message and flattens its MIME tree.
func (s *GmailStore) Message(ctx context.Context, id string) (*model.RawMessage, error) {
	msg, err := s.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return fromGmail(msg), nil
}

// Attachment downloads one attachment body.
func (s *GmailStore) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := s.svc.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get attachment %s: %w", attachmentID, err)
	}
	data, err := decodeBody(body.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}

// fromGmail converts the API representation. A single-part payload becomes
// Body; multipart trees are flattened depth-first into Parts.
func fromGmail(msg *gmail.Message) *model.RawMessage {
	raw := &model.RawMessage{ID: msg.Id}
	if msg.Payload == nil {
		return raw
	}
	for _, h := range msg.Payload.Headers {
		raw.Headers = append(raw.Headers, model.Header{Name: h.Name, Value: h.Value})
	}
	if len(msg.Payload.Parts) == 0 {
		if msg.Payload.Body != nil && strings.HasPrefix(msg.Payload.MimeType, "text/") {
			raw.Body = partText(msg.Id, msg.Payload)
		}
		if leaf, ok := toPart(msg.Id, msg.Payload); ok && leaf.AttachmentID != "" {
			raw.Parts = append(raw.Parts, leaf)
		}
		return raw
	}
	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, p := range parts {
			if len(p.Parts) > 0 {
				walk(p.Parts)
				continue
			}
			if leaf, ok := toPart(msg.Id, p); ok {
				raw.Parts = append(raw.Parts, leaf)
			}
		}
	}
	walk(msg.Payload.Parts)
	return raw
}

func toPart(messageID string, p *gmail.MessagePart) (model.Part, bool) {
	if p.Body == nil {
		return model.Part{}, false
	}
	part := model.Part{
		MimeType:     strings.ToLower(p.MimeType),
		Filename:     p.Filename,
		AttachmentID: p.Body.AttachmentId,
	}
	if part.AttachmentID == "" {
		part.Data = partText(messageID, p)
	}
	return part, true
}

func partText(messageID string, p *gmail.MessagePart) string {
	data, err := decodeBody(p.Body.Data)
	if err != nil {
		slog.Warn("Could not decode message part.", "messageId", messageID, "partId", p.PartId, "error", err)
		return ""
	}
	return string(data)
}
