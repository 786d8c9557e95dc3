package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
)

// ConversationClient talks to the external conversation collaborator. The
// dispute core only stores the returned conversation id; transport mechanics
// (live push, polling) are the collaborator's concern.
type ConversationClient interface {
	CreateConversation(ctx context.Context, participantA, participantB string) (string, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) error
}

type httpConversationClient struct {
	baseURL string
	client  *http.Client
}

// NewConversationClient builds the HTTP client, or a local fallback when no
// endpoint is configured (development mode).
func NewConversationClient(cfg config.GatewayConfig, logger *zap.Logger) ConversationClient {
	if cfg.ConversationURL == "" {
		logger.Warn("GATEWAY_CONVERSATION_URL not provided; using local conversation stub")
		return &stubConversationClient{logger: logger}
	}
	return &httpConversationClient{
		baseURL: cfg.ConversationURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpConversationClient) CreateConversation(ctx context.Context, participantA, participantB string) (string, error) {
	body := map[string]string{
		"participant_a": participantA,
		"participant_b": participantB,
	}
	var response struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.post(ctx, "/conversations", body, &response); err != nil {
		return "", err
	}
	return response.ConversationID, nil
}

func (c *httpConversationClient) SendMessage(ctx context.Context, conversationID, senderID, content string) error {
	body := map[string]string{
		"sender_id": senderID,
		"content":   content,
	}
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	return c.post(ctx, path, body, nil)
}

func (c *httpConversationClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("conversation collaborator returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stubConversationClient fabricates conversation ids locally so the dispute
// flow keeps working without the collaborator.
type stubConversationClient struct {
	logger *zap.Logger
}

func (s *stubConversationClient) CreateConversation(_ context.Context, participantA, participantB string) (string, error) {
	id := uuid.NewString()
	s.logger.Debug("stub conversation created",
		zap.String("conversation_id", id),
		zap.String("participant_a", participantA),
		zap.String("participant_b", participantB))
	return id, nil
}

func (s *stubConversationClient) SendMessage(_ context.Context, conversationID, senderID, content string) error {
	s.logger.Debug("stub conversation message",
		zap.String("conversation_id", conversationID),
		zap.String("sender_id", senderID),
		zap.Int("content_len", len(content)))
	return nil
}
