package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"safe-core/internal/model"
	"safe-core/internal/service/mq"
	"safe-core/pkg/logger"
)

// RelayService 负责将本地消息表的消息搬运到 MQ
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:       db,
		producer: producer,
		interval: 500 * time.Millisecond, // 500ms 轮询一次
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("relay service started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("relay service stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *RelayService) processPendingMessages(ctx context.Context) {
	// 1. 获取一批 Pending 消息，每次取 50 条
	var messages []model.OutboxMessage
	if err := s.db.Where("status = ?", "PENDING").Limit(50).Find(&messages).Error; err != nil {
		logger.Error("relay query failed", zap.Error(err))
		return
	}

	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		// 2. 发送 MQ，Key 用 safe_tx_hash 保证同一笔交易的事件有序
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Error("relay publish failed", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}

		// 3. 更新状态为 SENT
		// 只有发送成功了才更新状态 => At-least-once (至少一次投递)
		// 如果这里更新失败，下次还会发，Consumer 需做好幂等
		if err := s.db.Model(&msg).Update("status", "SENT").Error; err != nil {
			logger.Error("relay mark sent failed", zap.Uint64("id", msg.ID), zap.Error(err))
		}
	}
}
