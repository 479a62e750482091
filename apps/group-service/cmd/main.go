package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"gostudy-social/apps/group-service/dao"
	"gostudy-social/apps/group-service/handler"
	"gostudy-social/apps/group-service/model"
	"gostudy-social/apps/group-service/service"
	"gostudy-social/pkg/lifecycle"
	"gostudy-social/pkg/server"
	"gostudy-social/pkg/snowflake"
	"gostudy-social/pkg/telemetry"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("group-service")
	cfg := app.GetConfig()

	// 初始化链路追踪
	if err := telemetry.InitGlobal(telemetry.DefaultConfig("group-service")); err != nil {
		panic("Failed to initialize telemetry: " + err.Error())
	}

	// 初始化雪花ID生成器，会话和监听者ID用
	if err := snowflake.InitGlobalSnowflake(1); err != nil {
		panic("Failed to initialize snowflake: " + err.Error())
	}

	// 启用HTTP和WebSocket服务器
	app.EnableHTTP()
	wsServer := app.EnableWebSocket()

	// 自动迁移数据库表结构
	postgreSQL := app.GetPostgreSQL()
	if err := postgreSQL.AutoMigrate(
		&model.Group{},
		&model.GroupMember{},
		&model.GroupInvite{},
	); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// 初始化DAO层
	groupDAO := dao.NewGroupDAO(postgreSQL)
	eventDAO := dao.NewEventDAO(app.GetMongoDB())

	// 初始化Service层
	feed := service.NewRedisChangeFeed(app.GetRedisClient(), cfg.Realtime.Channel)
	svc := service.NewService(groupDAO, eventDAO, app.GetRedisClient(), app.GetKafkaProducer(), feed, app.GetLogger(), service.ServiceConfig{
		InviteBaseURL:     cfg.Invite.BaseURL,
		DefaultExpireDays: cfg.Invite.DefaultExpireDays,
		PresenceTTL:       time.Duration(cfg.Presence.TTLSeconds) * time.Second,
		KafkaTopic:        cfg.Kafka.Topic,
	})

	// 初始化Handler
	httpHandler := handler.NewHTTPHandler(svc, app.GetLogger())
	wsHandler := handler.NewWSHandler(svc, app.GetLogger())
	wsServer.RegisterHandler("/ws/groups", wsHandler)

	// 注册HTTP路由
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 实时同步订阅跟随服务生命周期
	app.AddLifecycleHook(lifecycle.Hook{
		Name:     "realtime-sync",
		Priority: 200,
		OnStart: func(ctx context.Context) error {
			return svc.Syncer().Subscribe(ctx)
		},
		OnStop: func(ctx context.Context) error {
			svc.Syncer().Unsubscribe()
			return nil
		},
	})

	// 链路追踪在最后收尾
	app.AddLifecycleHook(lifecycle.Hook{
		Name:     "telemetry",
		Priority: 400,
		OnStop: func(ctx context.Context) error {
			return telemetry.ShutdownGlobal(ctx)
		},
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
