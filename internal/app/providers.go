package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/notify"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/socket"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
)

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	opts := options.Client().
		SetAppName("family-chat").
		SetDirect(cfg.Database.Direct).
		SetHosts(cfg.Database.Hosts)

	if cfg.Database.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Database.Username,
			Password:   cfg.Database.Password,
			AuthSource: cfg.Database.AuthDB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("init mongo client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		},
		OnStop: func(ctx context.Context) error {
			return mongoClient.Disconnect(ctx)
		},
	})

	return &mongodb.DB{
		Client:   mongoClient,
		Database: mongoClient.Database(cfg.Database.Database),
	}, nil
}

func newBroadcaster(lc fx.Lifecycle, cfg *config.Config) (usecase.Broadcaster, error) {
	if cfg.Socket.Driver != config.SocketDriverRedis {
		return socket.NewHTTPBroadcaster(socket.NewClient(cfg))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return socket.NewRedisBroadcaster(socket.NewRedisPublisher(cfg, client))
}

func newNotifier(lc fx.Lifecycle, cfg *config.Config) usecase.Notifier {
	if !cfg.Kafka.Enabled {
		return notify.LogNotifier{}
	}

	notifier := notify.NewKafkaNotifier(cfg)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return notifier.Close()
		},
	})
	return notifier
}
