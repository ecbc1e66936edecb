package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"safe-core/internal/handler"
	"safe-core/internal/model"
	"safe-core/internal/server"
	"safe-core/internal/service"
	"safe-core/internal/service/mq"
	"safe-core/pkg/cache"
	"safe-core/pkg/config"
	"safe-core/pkg/database"
	"safe-core/pkg/logger"
	"safe-core/pkg/monitor"
)

func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 初始化监控指标
	monitor.Init()

	// 3. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 4. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 5. 执行数据库迁移 (Auto Migrate)
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
		logger.Info("数据库自动迁移完成 (Dev Mode)")
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 6. 初始化多级缓存 (L1 Memory + L2 Redis)
	safeCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(time.Minute, 5*time.Minute),
		cache.NewRedisCache(rdb),
	)

	// 7. 初始化目录服务
	directory := service.NewDirectoryService(db, safeCache, config.Global.Safe.ChainID)

	// 8. 初始化消息队列生产者
	var producer mq.Producer
	if config.Global.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", config.Global.Kafka.Brokers))
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers)
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
	}

	// 9. 启动消息中继服务 (Outbox → MQ)
	relayService := service.NewRelayService(db, producer)
	go relayService.Start(context.Background())

	// 10. HTTP Router
	r := server.NewHTTPRouter(handler.NewSafeHandler(directory))

	// 11. 启动应用 (阻塞直到收到退出信号)
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)
	app.Run()

	// 12. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	logger.Info("系统已退出")
}
