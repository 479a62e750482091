package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Invite   InviteConfig
	Presence PresenceConfig
	Realtime RealtimeConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string
	Version   string
	JWTSecret string
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Network string
	Addr    string
	Timeout string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	DSN    string
	DBName string
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI    string
	DBName string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// InviteConfig 邀请链接配置
type InviteConfig struct {
	BaseURL           string // 邀请链接前缀，如 https://study.example.com
	DefaultExpireDays int    // 未指定过期时间时的默认天数，0表示永不过期
}

// PresenceConfig 在线状态配置
type PresenceConfig struct {
	TTLSeconds int // Redis在线标记的过期秒数
}

// RealtimeConfig 实时同步配置
type RealtimeConfig struct {
	Channel string // 群组变更通知的Redis频道
}

// LoadConfig 加载配置，配置文件可选，环境变量覆盖默认值
func LoadConfig(serviceName string) *Config {
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, serviceName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("读取配置文件失败: %v", err))
		}
		// 没有配置文件时使用默认值+环境变量
	}

	return &Config{
		App: AppConfig{
			Name:      serviceName,
			Version:   v.GetString("app.version"),
			JWTSecret: v.GetString("app.jwt_secret"),
		},
		Server: ServerConfig{
			HTTP: HTTPConfig{
				Network: "tcp",
				Addr:    ":" + v.GetString("server.http.port"),
				Timeout: v.GetString("server.http.timeout"),
			},
		},
		Database: DatabaseConfig{
			PostgreSQL: PostgreSQLConfig{
				DSN:    v.GetString("database.postgresql.dsn"),
				DBName: v.GetString("database.postgresql.db_name"),
			},
			MongoDB: MongoDBConfig{
				URI:    v.GetString("database.mongodb.uri"),
				DBName: v.GetString("database.mongodb.db_name"),
			},
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
		Invite: InviteConfig{
			BaseURL:           v.GetString("invite.base_url"),
			DefaultExpireDays: v.GetInt("invite.default_expire_days"),
		},
		Presence: PresenceConfig{
			TTLSeconds: v.GetInt("presence.ttl_seconds"),
		},
		Realtime: RealtimeConfig{
			Channel: v.GetString("realtime.channel"),
		},
	}
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper, serviceName string) {
	dbName := strings.ReplaceAll(serviceName, "-", "_") + "_db"

	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.jwt_secret", "gostudy-social")
	v.SetDefault("server.http.port", "21002")
	v.SetDefault("server.http.timeout", "30s")
	v.SetDefault("database.postgresql.dsn",
		"host=localhost user=postgres password=postgres dbname="+dbName+" port=5432 sslmode=disable")
	v.SetDefault("database.postgresql.db_name", dbName)
	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.db_name", dbName)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "group-activity-events")
	v.SetDefault("invite.base_url", "http://localhost:5173")
	v.SetDefault("invite.default_expire_days", 0)
	v.SetDefault("presence.ttl_seconds", 300)
	v.SetDefault("realtime.channel", "groups:changed")
}
