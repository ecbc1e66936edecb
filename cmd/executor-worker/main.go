package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"safe-core/internal/event"
	"safe-core/internal/service"
	"safe-core/internal/service/mq"
	"safe-core/pkg/config"
	"safe-core/pkg/database"
	"safe-core/pkg/keystore"
	"safe-core/pkg/logger"
	"safe-core/pkg/monitor"
	"safe-core/pkg/utils/lock"
)

// Executor Worker 独立运行的执行服务
// 它持有执行方私钥，是系统中最敏感的组件
func main() {
	// 1. 初始化配置与日志
	config.Init()
	logger.Init(config.Global.App.Env)
	defer logger.Sync()
	monitor.InitBusinessMetrics()

	logger.Info("启动执行服务 (Executor Worker)...", zap.String("env", config.Global.App.Env))

	// 2. 初始化数据库 (读取 QUORUM 状态的交易和确认表)
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

	// 3. 初始化 Redis (分布式锁 + Redis MQ fallback)
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 加载执行方私钥
	key, err := loadExecutorKey()
	if err != nil {
		logger.Fatal("致命错误: 无法加载执行方私钥!", zap.Error(err))
	}
	logger.Info("🔐 执行方私钥加载成功", zap.String("address", crypto.PubkeyToAddress(key.PublicKey).Hex()))

	// 5. 初始化执行服务
	executor, err := service.NewExecutorService(
		db,
		config.Global.Safe.RpcUrl,
		key,
		config.Global.Safe.ChainID,
		lock.NewRedisLock(rdb),
	)
	if err != nil {
		logger.Fatal("执行服务初始化失败", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. 初始化 MQ Consumer，确认事件用来提前唤醒轮询
	var consumer mq.Consumer
	if config.Global.Redis.MQType == "kafka" {
		logger.Info("MQ Mode: Kafka Consumer", zap.Strings("brokers", config.Global.Kafka.Brokers))
		consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, "executor-group")
	} else {
		logger.Info("MQ Mode: Redis Consumer")
		consumer = mq.NewRedisConsumer(rdb, "executor-group", "worker-1")
	}

	go func() {
		logger.Info("开始监听确认事件", zap.String("topic", event.TopicConfirmation))
		if err := consumer.Subscribe(ctx, event.TopicConfirmation, executor.WakeHandler()); err != nil {
			logger.Error("订阅失败", zap.Error(err))
		}
	}()

	// 7. 启动执行循环
	go executor.Start(ctx)

	// 8. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在停止执行服务...")
	cancel()
	_ = consumer.Close()
	time.Sleep(2 * time.Second)
	logger.Info("执行服务已停止")
}

// loadExecutorKey 从 Keystore 加载私钥，密码来自配置 (通常是 SAFE_PASSWORD 环境变量)
func loadExecutorKey() (*ecdsa.PrivateKey, error) {
	keystorePath := config.Global.Safe.KeystorePath
	password := config.Global.Safe.Password

	if _, err := os.Stat(keystorePath); err != nil {
		return nil, fmt.Errorf("keystore 文件不存在: %s", keystorePath)
	}
	if password == "" {
		return nil, fmt.Errorf("未设置 Keystore 密码 (SAFE_PASSWORD)")
	}

	encrypted, err := keystore.LoadFromFile(keystorePath)
	if err != nil {
		return nil, err
	}
	raw, err := keystore.DecryptKey(encrypted, password)
	if err != nil {
		return nil, err
	}
	return crypto.ToECDSA(raw)
}
