package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"google.golang.org/grpc/codes"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/pkg/logger"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

type handlerFunc func(ctx context.Context, msg kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type consumerOptions struct {
	sd             fx.Shutdowner
	lc             fx.Lifecycle
	readerConf     kafka.ReaderConfig
	maxWorkers     int
	consumeTimeout time.Duration
	handler        handlerFunc
}

type consumer struct {
	reader         messageReader
	groupID        string
	metrics        *prometheus.HistogramVec
	pool           *workerpool.WorkerPool
	consumeTimeout time.Duration
	handler        handlerFunc

	cancel context.CancelFunc
	done   chan struct{}
}

func newConsumer(reader messageReader, groupID string, opts consumerOptions) (*consumer, error) {
	metrics, err := util.GetHistogramVec("kafka_messages_consumed", "status", "topic", "group")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}
	workers := opts.maxWorkers
	if workers <= 0 {
		workers = 1
	}
	return &consumer{
		reader:         reader,
		groupID:        groupID,
		metrics:        metrics,
		pool:           workerpool.New(workers),
		consumeTimeout: opts.consumeTimeout,
		handler:        opts.handler,
		done:           make(chan struct{}),
	}, nil
}

// startKafkaConsumer ties a consumer to the fx lifecycle. A reader that
// stops with an error shuts the app down.
func startKafkaConsumer(opts consumerOptions) error {
	c, err := newConsumer(kafka.NewReader(opts.readerConf), opts.readerConf.GroupID, opts)
	if err != nil {
		return err
	}
	opts.lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			c.cancel = cancel
			go func() {
				defer close(c.done)
				if err := c.run(ctx); err != nil {
					log.Errorw(ctx, "kafka consumer stopped", "error", err)
					_ = opts.sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: c.stop,
	})
	return nil
}

func (c *consumer) run(ctx context.Context) error {
	log.Infow(ctx, "kafka consumer started", "group", c.groupID)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("reader closed: %w", err)
			}
			log.Errorw(ctx, "failed to fetch message", "error", err)
			continue
		}

		c.pool.Submit(func() {
			c.process(ctx, msg)
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				log.Errorw(ctx, "failed to commit message", "error", err, "offset", msg.Offset)
			}
		})
	}
}

func (c *consumer) stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	}
	c.pool.StopWait()
	return c.reader.Close()
}

func (c *consumer) process(ctx context.Context, msg kafka.Message) {
	ctx = log.With(ctx,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	lagMs := time.Since(msg.Time).Milliseconds()

	duration, err := c.handle(ctx, msg)

	code := getCode(err)
	content := "success"
	if err != nil {
		content = err.Error()
	}
	log.Logw(ctx, getLogLevel(code), content,
		"code", code,
		"duration_ms", duration.Milliseconds(),
		"lag_ms", lagMs,
		"key", string(msg.Key),
		"value", json.RawMessage(msg.Value),
	)

	c.metrics.
		WithLabelValues(code.String(), msg.Topic, c.groupID).
		Observe(duration.Seconds())
}

func (c *consumer) handle(msgCtx context.Context, msg kafka.Message) (duration time.Duration, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			length := runtime.Stack(stack, false)
			err = fmt.Errorf("PANIC RECOVER: %+v / %s", r, string(stack[:length]))
		}
		duration = time.Since(start)
	}()

	ctx := msgCtx
	if c.consumeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(msgCtx, c.consumeTimeout)
		defer cancel()
	}
	return 0, c.handler(ctx, msg)
}

func getCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return models.Code(err)
}

func getLogLevel(code codes.Code) logger.Level {
	switch code {
	case codes.OK:
		return logger.InfoLevel
	case codes.Canceled,
		codes.InvalidArgument,
		codes.NotFound,
		codes.AlreadyExists,
		codes.PermissionDenied,
		codes.Unauthenticated,
		codes.ResourceExhausted,
		codes.FailedPrecondition,
		codes.Aborted,
		codes.Unimplemented,
		codes.OutOfRange:
		return logger.WarnLevel
	default:
		return logger.ErrorLevel
	}
}
