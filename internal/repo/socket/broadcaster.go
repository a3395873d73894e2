package socket

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

const broadcastTimeout = 5 * time.Second

type sender interface {
	SendToUsers(ctx context.Context, userIDs []primitive.ObjectID, name string, data any) error
}

// Broadcaster delivers realtime events in the background. Failures are
// logged and counted, never returned.
type Broadcaster struct {
	driver  string
	sender  sender
	metrics *prometheus.CounterVec
}

var _ usecase.Broadcaster = (*Broadcaster)(nil)

func newBroadcaster(driver string, s sender) (*Broadcaster, error) {
	metrics, err := util.GetCounterVec("realtime_events_sent", "driver", "event", "status")
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		driver:  driver,
		sender:  s,
		metrics: metrics,
	}, nil
}

// NewHTTPBroadcaster sends events through the socket gateway's HTTP API.
func NewHTTPBroadcaster(client *Client) (*Broadcaster, error) {
	return newBroadcaster("http", client)
}

// NewRedisBroadcaster publishes events on per-user redis channels.
func NewRedisBroadcaster(publisher *RedisPublisher) (*Broadcaster, error) {
	return newBroadcaster("redis", publisher)
}

func (b *Broadcaster) Broadcast(ctx context.Context, userIDs []primitive.ObjectID, event string, data any) {
	if len(userIDs) == 0 {
		return
	}
	userIDs = util.Uniq(userIDs)
	go func() {
		ctx, cancel := util.NewTimeoutContext(ctx, broadcastTimeout)
		defer cancel()

		status := "ok"
		if err := b.sender.SendToUsers(ctx, userIDs, event, data); err != nil {
			status = "error"
			log.Warnw(ctx, "failed to broadcast event",
				"driver", b.driver,
				"event", event,
				"users", len(userIDs),
				"error", err,
			)
		}
		b.metrics.WithLabelValues(b.driver, event, status).Inc()
	}()
}
