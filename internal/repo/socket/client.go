package socket

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

// Client talks to the socket gateway, which owns the user connections.
type Client struct {
	baseURL  string
	platform string
	http     *resty.Client
}

type Event struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform,omitempty"`
	Name     string `json:"name"`
	Data     any    `json:"data"`
}

type SendEventsRequest struct {
	Events []Event `json:"events"`
}

type SendEventsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func NewClient(conf *config.Config) *Client {
	return &Client{
		baseURL:  conf.Socket.BaseURL,
		platform: conf.Socket.Platform,
		http:     util.NewRestyClient(),
	}
}

func (c *Client) SendEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	var out SendEventsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(SendEventsRequest{Events: events}).
		SetResult(&out).
		SetError(&out).
		Post(c.baseURL + "/v1/events")
	if err != nil {
		return fmt.Errorf("failed to send events: %w", err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return fmt.Errorf("socket server error: %s", out.Error)
		}
		return fmt.Errorf("socket server returned status %d", resp.StatusCode())
	}
	if !out.Success {
		return fmt.Errorf("socket server returned success=false: %s", out.Error)
	}

	log.Debugw(ctx, "sent events to socket server", "event_count", len(events))
	return nil
}

// SendToUsers fans one event out to every user.
func (c *Client) SendToUsers(ctx context.Context, userIDs []primitive.ObjectID, name string, data any) error {
	events := make([]Event, 0, len(userIDs))
	for _, id := range userIDs {
		events = append(events, Event{
			UserID:   id.Hex(),
			Platform: c.platform,
			Name:     name,
			Data:     data,
		})
	}
	return c.SendEvents(ctx, events)
}
