package model

// Header is a single name/value pair from a message header list. Names are
// matched case-sensitively.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Part is one segment of a multipart message body. Data holds the decoded text
// of inline parts; binary attachments carry an AttachmentID instead, which must be
// resolved through the message store.
type Part struct {
	MimeType     string `json:"mimeType"`
	Filename     string `json:"filename,omitempty"`
	Data         string `json:"data,omitempty"`
	AttachmentID string `json:"attachmentId,omitempty"`
}

// RawMessage is the message-store representation consumed by the normalizer.
type RawMessage struct {
	ID      string   `json:"id"`
	Headers []Header `json:"headers"`
	// Body is the inline (non-multipart) payload, empty when the message is multipart.
	Body  string `json:"body,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Header returns the value of the first header whose name equals name exactly,
// or "" when absent.
func (m *RawMessage) Header(name string) string {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
