package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"web2app-backend/internal/models"
)

// RealtimeClient sends broadcast messages through the Realtime REST endpoint.
// Row changes on builds also reach subscribers through the replication
// publication; broadcasts carry the normalized snapshot to clients that do
// not listen for postgres changes.
type RealtimeClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type broadcastMessage struct {
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

type broadcastRequest struct {
	Messages []broadcastMessage `json:"messages"`
}

func NewRealtimeClient(supabaseURL, serviceRoleKey string) *RealtimeClient {
	return &RealtimeClient{
		endpoint:   strings.TrimSuffix(supabaseURL, "/") + "/realtime/v1/api/broadcast",
		apiKey:     serviceRoleKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *RealtimeClient) PublishEvent(ctx context.Context, channel, event string, payload map[string]any) error {
	jsonData, err := json.Marshal(broadcastRequest{Messages: []broadcastMessage{{
		Topic:   channel,
		Event:   event,
		Payload: payload,
	}}})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("broadcast failed: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// PublishBuildEvent broadcasts a build snapshot on build:{build_id} and, when
// the build has an owner, on user:{user_id}.
func (r *RealtimeClient) PublishBuildEvent(ctx context.Context, build *models.Build) error {
	payload := BuildStatusPayload(build)
	if err := r.PublishEvent(ctx, "build:"+build.BuildID, "build_status", payload); err != nil {
		return err
	}
	if build.UserID.Valid {
		return r.PublishEvent(ctx, "user:"+build.UserID.String, "build_status", payload)
	}
	return nil
}

func BuildStatusPayload(build *models.Build) map[string]any {
	payload := map[string]any{
		"build_id": build.BuildID,
		"platform": string(build.Platform),
		"status":   build.Status,
	}
	if build.DownloadURL.Valid {
		payload["download_url"] = build.DownloadURL.String
	}
	if build.AABDownloadURL.Valid {
		payload["aab_download_url"] = build.AABDownloadURL.String
	}
	if build.ErrorMessage.Valid {
		payload["error"] = build.ErrorMessage.String
	}
	return payload
}
