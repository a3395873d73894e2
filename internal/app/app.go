package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/family-chat/internal/server"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
	"github.com/nguyentranbao-ct/family-chat/pkg/logger"
)

func Invoke(funcs ...any) *fx.App {
	conf := config.MustLoad()
	if err := logger.Setup(conf.Log.Level, conf.Log.Format); err != nil {
		panic(err)
	}
	log := logger.MustNamed("app")
	log.Debugw("config loaded",
		"env", conf.Env,
		"addr", conf.Server.Addr,
		"database", conf.Database.Database,
		"socket_driver", conf.Socket.Driver,
		"kafka_enabled", conf.Kafka.Enabled,
	)

	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,
			newBroadcaster,
			newNotifier,

			mongodb.NewChatRepository,
			mongodb.NewChatMembershipRepository,
			mongodb.NewMessageRepository,

			fx.Annotate(usecase.NewChatUseCase, fx.As(new(usecase.ChatUsecase))),
			fx.Annotate(usecase.NewMembershipUseCase, fx.As(new(usecase.MembershipUsecase))),
			fx.Annotate(usecase.NewMessageUseCase, fx.As(new(usecase.MessageUsecase))),

			server.NewController,
		),
		fx.Supply(conf),
		fx.Invoke(EnsureIndexes),
		fx.Invoke(funcs...),
	)
}

// EnsureIndexes creates the collections' indexes before anything serves.
func EnsureIndexes(
	lc fx.Lifecycle,
	chatRepo mongodb.ChatRepository,
	membershipRepo mongodb.ChatMembershipRepository,
	messageRepo mongodb.MessageRepository,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mongodb.EnsureIndexes(ctx, chatRepo, membershipRepo, messageRepo)
		},
	})
}
