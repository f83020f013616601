package oracle

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultVertexModel is the Gemini model used when none is configured.
const DefaultVertexModel = "gemini-1.5-flash"

// VertexModel completes prompts with a Gemini model on Vertex AI.
type VertexModel struct {
	client    *genai.Client
	modelName string
}

// NewVertexModel creates the underlying genai client for projectID/region.
func NewVertexModel(ctx context.Context, projectID, region, modelName string) (*VertexModel, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexModel: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultVertexModel
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexModel{client: client, modelName: modelName}, nil
}

// Complete sends prompt under the given system instruction and returns the
// concatenated text parts of the first candidate.
func (m *VertexModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	gm := m.client.GenerativeModel(m.modelName)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	gm.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

// Close releases the genai client.
func (m *VertexModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
