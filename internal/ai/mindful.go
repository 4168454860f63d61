package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MindfulProvider calls the Mindful backend's companion endpoint. The
// endpoint is stateless: it takes the latest user utterance only, so just
// the last user message of the context is sent.
type MindfulProvider struct {
	BaseURL string
	Client  *http.Client
}

type mindfulChatReq struct {
	UserInput string `json:"userInput"`
}

type mindfulChatResp struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func NewMindfulProvider(baseURL string) *MindfulProvider {
	if baseURL == "" {
		baseURL = "http://localhost:4000"
	}
	return &MindfulProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *MindfulProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("mindful: http client is nil")
	}
	input := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			input = messages[i].Content
			break
		}
	}
	if input == "" {
		return "", errors.New("mindful: no user message in context")
	}

	b, err := json.Marshal(mindfulChatReq{UserInput: input})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("mindful: %s", msg)
	}

	var decoded mindfulChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	if decoded.Response == "" {
		return "", errors.New("mindful: empty response")
	}
	return decoded.Response, nil
}
