package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// VertexGateway implements Gateway on top of Vertex AI Gemini. It exists
// for deployments that keep everything inside one GCP project instead of
// calling an external chat-completions endpoint.
type VertexGateway struct {
	baseClient *genai.Client
	modelName  string
}

// NewVertexGateway creates a gateway backed by a Vertex AI generative model.
func NewVertexGateway(ctx context.Context, projectID, region, modelName string) (*VertexGateway, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexGateway: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexGateway{
		baseClient: baseClient,
		modelName:  modelName,
	}, nil
}

// Classify sends the request to Gemini and returns the extracted answer
// text. The SDK owns connection handling and retries, so unlike the chat
// gateway there is no retry loop here.
func (g *VertexGateway) Classify(ctx context.Context, req Request) (string, error) {
	model := g.baseClient.GenerativeModel(g.modelName)

	var userParts []genai.Part
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}
		userParts = append(userParts, genai.Text(msg.Content))
	}
	if len(userParts) == 0 {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("request contained no user message")}
	}

	config := genai.GenerationConfig{}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		config.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = genai.Ptr(int32(req.MaxTokens))
	}
	if req.ResponseFormat == FormatJSON {
		config.ResponseMIMEType = "application/json"
	}
	model.GenerationConfig = config

	resp, err := model.GenerateContent(ctx, userParts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to generate content: %w", err)}
		}
		return "", &Error{Kind: KindUpstream, Err: fmt.Errorf("failed to generate content: %w", err)}
	}

	answer := extractText(resp)
	if answer == "" {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("gemini returned no text content")}
	}
	return answer, nil
}

func (g *VertexGateway) Close() error {
	if g.baseClient != nil {
		return g.baseClient.Close()
	}
	return nil
}

// extractText robustly gets the raw text content from the model response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var contentBuilder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			contentBuilder.WriteString(string(txt))
		}
	}

	contentStr := strings.TrimSpace(contentBuilder.String())
	contentStr = strings.TrimPrefix(contentStr, "```json")
	contentStr = strings.TrimPrefix(contentStr, "```")
	contentStr = strings.TrimSuffix(contentStr, "```")
	return strings.TrimSpace(contentStr)
}
