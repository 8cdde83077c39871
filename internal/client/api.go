package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storyscout/server/internal/service/party"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) postJSON(ctx context.Context, path string, body any, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: unexpected status %d: %s", http.MethodPost, path, resp.StatusCode, detail)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type createPartyRequest struct {
	UserId       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	Platform     string `json:"platform"`
	ContentId    string `json:"contentId"`
	ContentTitle string `json:"contentTitle"`
	VideoUrl     string `json:"videoUrl"`
}

func (c *apiClient) createParty(ctx context.Context, req createPartyRequest) (party.Party, error) {
	var envelope struct {
		Party party.Party `json:"party"`
	}
	if err := c.postJSON(ctx, "/api/v1/party", req, &envelope); err != nil {
		return party.Party{}, err
	}
	return envelope.Party, nil
}

type joinPartyRequest struct {
	Code        string `json:"code"`
	UserId      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Platform    string `json:"platform"`
}

func (c *apiClient) joinParty(ctx context.Context, req joinPartyRequest) (party.Party, error) {
	var envelope struct {
		Party party.Party `json:"party"`
	}
	if err := c.postJSON(ctx, "/api/v1/party/join", req, &envelope); err != nil {
		return party.Party{}, err
	}
	return envelope.Party, nil
}

func (c *apiClient) updatePlayback(ctx context.Context, params *party.UpdatePlaybackStateParams) error {
	return c.postJSON(ctx, "/api/v1/party/"+params.Code+"/playback", map[string]any{
		"senderId":    params.SenderId,
		"status":      string(params.Status),
		"currentTime": params.CurrentTime,
	}, nil)
}

func (c *apiClient) leaveParty(ctx context.Context, code, userId string) error {
	return c.postJSON(ctx, "/api/v1/party/"+code+"/leave", map[string]string{
		"userId": userId,
	}, nil)
}
