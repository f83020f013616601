// Package oracle drives the external structured-extraction model. Every call
// resolves to a tagged Outcome instead of an error so a single bad document never
// aborts a batch.
package oracle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// Model is the black-box text completion service behind the oracle.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Client issues bill and statement extraction requests against a Model.
type Client struct {
	model   Model
	timeout time.Duration
}

// NewClient wraps m. A positive timeout bounds every individual call.
func NewClient(m Model, timeout time.Duration) *Client {
	return &Client{model: m, timeout: timeout}
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.model.Complete(ctx, system, prompt)
}

func renderPrompt(template string, doc model.Document) string {
	return strings.NewReplacer(
		"{{.From}}", doc.Sender,
		"{{.Subject}}", doc.Subject,
		"{{.Date}}", doc.Date,
		"{{.Content}}", doc.Content,
	).Replace(template)
}

func logOutcome(kind string, doc model.Document, k Kind, err error) {
	if k == Parsed {
		return
	}
	slog.Warn("Extraction did not produce a record.", "schema", kind, "documentId", doc.ID, "outcome", k.String(), "error", err)
}
