package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one transcript entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest asks for a reply conforming to Schema
type GenerateRequest struct {
	SchemaName string
	Schema     json.RawMessage
	Messages   []Message
}

// GenerateResult is a schema-conforming reply and the id that continues its thread
type GenerateResult struct {
	Content        json.RawMessage
	ContinuationID string
}

// ChatAPI is the subset of the SDK used for structured generation
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ThreadStore keeps generation transcripts addressable by continuation id.
// Load returns domain.ErrThreadExpired when the id is unknown.
type ThreadStore interface {
	Load(ctx context.Context, id string) ([]Message, error)
	Save(ctx context.Context, id string, messages []Message) error
}

// Generator is the generative gateway
type Generator struct {
	api     ChatAPI
	threads ThreadStore
	models  ModelConfig
	metrics *metrics.Metrics
	newID   func() string
}

// NewGenerator creates a generative gateway. With a nil ThreadStore every
// continuation id is issued but cannot be continued.
func NewGenerator(api ChatAPI, threads ThreadStore, models ModelConfig) *Generator {
	return &Generator{
		api:     api,
		threads: threads,
		models:  models,
		newID:   func() string { return "thr_" + uuid.NewString() },
	}
}

// WithMetrics records every generation call on m
func (g *Generator) WithMetrics(m *metrics.Metrics) *Generator {
	g.metrics = m
	return g
}

// Generate sends req, prefixed by the transcript stored under continuationID
// when it is non-empty, and returns the JSON reply with a new continuation id.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest, continuationID string) (*GenerateResult, error) {
	if len(req.Messages) == 0 {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("generate request has no messages"))
	}
	if req.SchemaName == "" || len(req.Schema) == 0 {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("generate request has no schema"))
	}

	var history []Message
	if continuationID != "" {
		if g.threads == nil {
			return nil, domain.ErrThreadExpired.Wrap(fmt.Errorf("continuation not configured"))
		}
		loaded, err := g.threads.Load(ctx, continuationID)
		if err != nil {
			if domain.HasCode(err, domain.ErrCodeExternalService) {
				return nil, err
			}
			return nil, domain.NewExternalServiceError("load generation thread", err)
		}
		history = loaded
	}

	transcript := make([]Message, 0, len(history)+len(req.Messages)+1)
	transcript = append(transcript, history...)
	transcript = append(transcript, req.Messages...)

	start := time.Now()
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model(),
		Messages: toChatMessages(transcript),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		},
	})
	g.metrics.RecordExternalCall("generate", err, time.Since(start))
	if err != nil {
		return nil, domain.NewExternalServiceError("generate", err)
	}

	content, err := replyContent(resp)
	if err != nil {
		return nil, err
	}

	id := resp.ID
	if id == "" {
		id = g.newID()
	}

	// Without a store the id is still issued; continuing it reports ErrThreadExpired.
	if g.threads != nil {
		transcript = append(transcript, Message{Role: RoleAssistant, Content: string(content)})
		if err := g.threads.Save(ctx, id, transcript); err != nil {
			return nil, domain.NewExternalServiceError("save generation thread", err)
		}
	}

	return &GenerateResult{Content: content, ContinuationID: id}, nil
}

func (g *Generator) model() string {
	if g.models.ResponsesModel == "" {
		return DefaultResponsesModel
	}
	return g.models.ResponsesModel
}

func replyContent(resp openai.ChatCompletionResponse) (json.RawMessage, error) {
	if len(resp.Choices) == 0 {
		return nil, domain.ErrMalformedReply.Wrap(fmt.Errorf("reply has no choices"))
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return nil, domain.ErrMalformedReply.Wrap(fmt.Errorf("reply is empty"))
	}
	if !json.Valid([]byte(raw)) {
		return nil, domain.ErrMalformedReply.Wrap(fmt.Errorf("reply is not valid JSON"))
	}
	return json.RawMessage(raw), nil
}

func toChatMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
