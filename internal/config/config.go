package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env      string         `env:"ENV" envDefault:"local"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Socket   SocketConfig   `envPrefix:"SOCKET_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Chat     ChatConfig     `envPrefix:"CHAT_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type ServerConfig struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	CORSPattern string `env:"CORS_PATTERN" envDefault:"^https?://localhost(:[0-9]+)?$"`
}

type DatabaseConfig struct {
	Hosts    []string `env:"HOSTS" envSeparator:"," envDefault:"localhost:27017"`
	Direct   bool     `env:"DIRECT" envDefault:"true"`
	Username string   `env:"USERNAME"`
	Password string   `env:"PASSWORD"`
	AuthDB   string   `env:"AUTH_DB" envDefault:"admin"`
	Database string   `env:"DATABASE" envDefault:"family_chat"`
}

const (
	SocketDriverHTTP  = "http"
	SocketDriverRedis = "redis"
)

type SocketConfig struct {
	Driver   string `env:"DRIVER" envDefault:"http"`
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:3001"`
	Platform string `env:"PLATFORM" envDefault:"web"`
}

type RedisConfig struct {
	Addr          string `env:"ADDR" envDefault:"localhost:6379"`
	Password      string `env:"PASSWORD"`
	DB            int    `env:"DB" envDefault:"0"`
	ChannelPrefix string `env:"CHANNEL_PREFIX" envDefault:"user:"`
}

type KafkaConfig struct {
	Enabled           bool     `env:"ENABLED" envDefault:"false"`
	Brokers           []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	NotificationTopic string   `env:"NOTIFICATION_TOPIC" envDefault:"notifications"`
	MembershipTopic   string   `env:"MEMBERSHIP_TOPIC" envDefault:"family.membership"`
	GroupID           string   `env:"GROUP_ID" envDefault:"family-chat"`
	Workers           int      `env:"WORKERS" envDefault:"4"`
}

type ChatConfig struct {
	MessagePageSize    int `env:"MESSAGE_PAGE_SIZE" envDefault:"50"`
	MaxMessagePageSize int `env:"MAX_MESSAGE_PAGE_SIZE" envDefault:"100"`
	ChatPageSize       int `env:"CHAT_PAGE_SIZE" envDefault:"20"`
	MaxChatPageSize    int `env:"MAX_CHAT_PAGE_SIZE" envDefault:"50"`
	PreviewLength      int `env:"PREVIEW_LENGTH" envDefault:"100"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Socket.Driver {
	case SocketDriverHTTP, SocketDriverRedis:
	default:
		return fmt.Errorf("unknown socket driver %q", c.Socket.Driver)
	}
	if c.Chat.MessagePageSize <= 0 || c.Chat.MessagePageSize > c.Chat.MaxMessagePageSize {
		return fmt.Errorf("invalid message page size %d (max %d)", c.Chat.MessagePageSize, c.Chat.MaxMessagePageSize)
	}
	if c.Chat.ChatPageSize <= 0 || c.Chat.ChatPageSize > c.Chat.MaxChatPageSize {
		return fmt.Errorf("invalid chat page size %d (max %d)", c.Chat.ChatPageSize, c.Chat.MaxChatPageSize)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}
	return nil
}
