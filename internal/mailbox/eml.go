package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path"
	"sort"
	"strings"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// MessageFile is a Store over a single RFC 822 message, used when normalizing
// an exported .eml file without a mailbox connection.
type MessageFile struct {
	msg         *model.RawMessage
	attachments map[string][]byte
}

// ParseEML reads one message. id becomes the message id; attachments are held
// in memory and resolved by Attachment.
func ParseEML(r io.Reader, id string) (*MessageFile, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	f := &MessageFile{
		msg:         &model.RawMessage{ID: id, Headers: headerList(m.Header)},
		attachments: make(map[string][]byte),
	}
	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}
	encoding := m.Header.Get("Content-Transfer-Encoding")
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := f.walk(m.Body, params["boundary"]); err != nil {
			return nil, err
		}
		return f, nil
	}
	body, err := io.ReadAll(decodeTransfer(m.Body, encoding))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if strings.HasPrefix(mediaType, "text/") {
		f.msg.Body = string(body)
		return f, nil
	}
	f.addLeaf(mediaType, filenameOf(m.Header.Get("Content-Disposition"), params), body)
	return f, nil
}

// List returns the single message id.
func (f *MessageFile) List(context.Context, string, int) ([]string, error) {
	return []string{f.msg.ID}, nil
}

// Message returns the parsed message.
func (f *MessageFile) Message(_ context.Context, id string) (*model.RawMessage, error) {
	if id != f.msg.ID {
		return nil, fmt.Errorf("message %s not in file", id)
	}
	return f.msg, nil
}

// Attachment returns the decoded attachment bytes.
func (f *MessageFile) Attachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	data, ok := f.attachments[attachmentID]
	if !ok || messageID != f.msg.ID {
		return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, attachmentID)
	}
	return data, nil
}

func (f *MessageFile) walk(r io.Reader, boundary string) error {
	if boundary == "" {
		return errors.New("multipart message without boundary")
	}
	mr := multipart.NewReader(r, boundary)
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read part: %w", err)
		}
		mediaType, params, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}
		if strings.HasPrefix(mediaType, "multipart/") {
			if err := f.walk(p, params["boundary"]); err != nil {
				return err
			}
			continue
		}
		data, err := io.ReadAll(decodeTransfer(p, p.Header.Get("Content-Transfer-Encoding")))
		if err != nil {
			return fmt.Errorf("read part body: %w", err)
		}
		f.addLeaf(mediaType, filenameOf(p.Header.Get("Content-Disposition"), params), data)
	}
}

func (f *MessageFile) addLeaf(mediaType, filename string, data []byte) {
	if mediaType == "application/octet-stream" && strings.EqualFold(path.Ext(filename), ".pdf") {
		mediaType = "application/pdf"
	}
	part := model.Part{MimeType: mediaType, Filename: filename}
	if strings.HasPrefix(mediaType, "text/") {
		part.Data = string(data)
	} else {
		part.AttachmentID = fmt.Sprintf("att-%d", len(f.attachments)+1)
		f.attachments[part.AttachmentID] = data
	}
	f.msg.Parts = append(f.msg.Parts, part)
}

// decodeTransfer undoes Content-Transfer-Encoding. multipart.Reader already
// strips quoted-printable from parts, so only top-level bodies hit that case.
func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

func filenameOf(disposition string, contentParams map[string]string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return contentParams["name"]
}

// headerList flattens the header map in name order with RFC 2047 words decoded.
func headerList(h mail.Header) []model.Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	dec := new(mime.WordDecoder)
	var out []model.Header
	for _, name := range names {
		for _, v := range h[name] {
			if decoded, err := dec.DecodeHeader(v); err == nil {
				v = decoded
			}
			out = append(out, model.Header{Name: name, Value: v})
		}
	}
	return out
}
