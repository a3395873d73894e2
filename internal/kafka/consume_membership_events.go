package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
)

var validate = validator.New()

// StartConsumeMembershipEvents removes users from their chats when they
// leave the family.
func StartConsumeMembershipEvents(
	sd fx.Shutdowner,
	lc fx.Lifecycle,
	conf *config.Config,
	chatUsecase usecase.ChatUsecase,
) error {
	if !conf.Kafka.Enabled {
		log.Warnf(context.Background(), "Kafka consumer is disabled in configuration")
		return nil
	}
	return startKafkaConsumer(consumerOptions{
		sd: sd,
		lc: lc,
		readerConf: kafka.ReaderConfig{
			Brokers:     conf.Kafka.Brokers,
			GroupID:     conf.Kafka.GroupID,
			GroupTopics: []string{conf.Kafka.MembershipTopic},
		},
		maxWorkers:     conf.Kafka.Workers,
		consumeTimeout: 30 * time.Second,
		handler:        membershipEventHandler(chatUsecase),
	})
}

func membershipEventHandler(chatUsecase usecase.ChatUsecase) handlerFunc {
	return func(ctx context.Context, msg kafka.Message) error {
		var event models.FamilyEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return models.BadRequest("failed to unmarshal family event: %v", err)
		}

		if event.Pattern != models.PatternFamilyMemberRemoved {
			log.Debugw(ctx, "Ignoring family event", "pattern", event.Pattern)
			return nil
		}
		if err := validate.Struct(event.Data); err != nil {
			return models.BadRequest("invalid family event: %v", err)
		}
		userID, err := models.ParseObjectID(event.Data.UserID, "user")
		if err != nil {
			return err
		}

		log.Infow(ctx, "Removing user from all chats",
			"family_id", event.Data.FamilyID,
			"user_id", event.Data.UserID)
		if err := chatUsecase.RemoveUserFromAllChats(ctx, userID); err != nil {
			return fmt.Errorf("remove user %s from chats: %w", event.Data.UserID, err)
		}
		return nil
	}
}
