package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured means the upstream API key is missing; a deployment
	// problem, not a client one.
	ErrNotConfigured = errors.New("chat upstream not configured")

	// ErrUpstream covers any failure talking to the model endpoint. Details
	// stay in the logs.
	ErrUpstream = errors.New("upstream chat request failed")
)

// EventSink mirrors the attempt engine's telemetry contract: appends are
// best-effort and never fail the reply.
type EventSink interface {
	Emit(ctx context.Context, typ, key string, data any)
}

// Service forwards participant messages to an OpenAI-compatible chat
// completions endpoint, non-streaming.
type Service struct {
	client *resty.Client
	apiKey string
	model  string
	events EventSink
	log    *zap.Logger
}

func NewService(baseURL, apiKey, model string, events EventSink, log *zap.Logger) *Service {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(60 * time.Second)
	return &Service{client: client, apiKey: apiKey, model: model, events: events, log: log}
}

type completionsRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionsResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Send forwards one user message and returns the model reply. The exchange
// is appended to the event log best-effort.
func (s *Service) Send(ctx context.Context, userID, text string) (string, error) {
	if s.apiKey == "" {
		return "", ErrNotConfigured
	}

	var out completionsResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetBody(completionsRequest{
			Model:    s.model,
			Messages: []message{{Role: "user", Content: text}},
		}).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		s.log.Error("chat upstream request failed", zap.Error(err))
		return "", ErrUpstream
	}
	if resp.IsError() {
		s.log.Error("chat upstream returned error",
			zap.Int("status", resp.StatusCode()), zap.String("body", resp.String()))
		return "", ErrUpstream
	}
	if len(out.Choices) == 0 {
		s.log.Error("chat upstream returned no choices")
		return "", ErrUpstream
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)

	if s.events != nil {
		s.events.Emit(ctx, "ChatExchange", userID, map[string]any{
			"message_len": len(text),
			"reply_len":   len(reply),
			"model":       s.model,
		})
	}
	return reply, nil
}
