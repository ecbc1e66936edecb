package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"safe-core/pkg/logger"
)

// KafkaProducer 实现 Producer 接口
// Writer 不绑定 Topic: Relay 会把 outbox 里的提案/确认/执行三类事件
// 发往各自的主题，Topic 逐条写在消息上
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer 创建 Kafka 生产者
// brokers: Kafka 节点地址列表 (e.g. ["localhost:9092"])
func NewKafkaProducer(brokers []string) *KafkaProducer {
	// 关键配置:
	// 1. Balancer: 按 Key 哈希，保证同一笔多签交易的事件有序
	// 2. RequiredAcks: 等待所有 ISR 副本确认，事件不能丢
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true, // 开发环境允许自动创建 Topic
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}

	return &KafkaProducer{
		writer: writer,
	}
}

// buildMessage 构造单条 Kafka 消息，Topic 由调用方逐条指定
func buildMessage(topic, key string, payload []byte) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key), // 使用传入的 Key 保证分区有序
		Value: payload,
	}
}

// Publish 发送消息到 Kafka
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	if err := p.writer.WriteMessages(ctx, buildMessage(topic, key, payload)); err != nil {
		logger.Error("kafka publish failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("kafka write error: %w", err)
	}

	return nil
}

// Close 关闭连接
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
