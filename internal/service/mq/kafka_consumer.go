package mq

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConsumer 实现 Consumer 接口
type KafkaConsumer struct {
	brokers []string
	groupID string
	reader  *kafka.Reader
}

// NewKafkaConsumer 创建 Kafka 消费者
func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers: brokers,
		groupID: groupID,
	}
}

// Subscribe 订阅 Kafka 主题
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// GroupID 保证同组内只有一个执行器实例消费到同一分区的消息 (多实例部署时的负载均衡)
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})

	log.Printf("[Kafka MQ] 开始监听主题: %s (Group: %s)", topic, c.groupID)

	go c.consumeLoop(ctx, topic, handler)

	return nil
}

func (c *KafkaConsumer) consumeLoop(ctx context.Context, topic string, handler func(msg *Message) error) {
	defer c.reader.Close()

	for {
		// 1. 读取消息 (阻塞直到有消息)
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // 上下文取消，退出
			}
			log.Printf("[Kafka MQ] 读取消息错误: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		// 2. 构造通用消息
		msg := &Message{
			ID:      string(m.Key),
			Topic:   topic,
			Key:     string(m.Key),
			Payload: m.Value,
		}

		// 3. 调用业务处理函数
		if err := handler(msg); err != nil {
			log.Printf("[Kafka MQ] 业务处理失败: %v", err)
			// 执行器的 handler 只是唤醒轮询，失败可以安全跳过；
			// 真正的执行状态以数据库为准
			continue
		}

		// 4. 手动提交 Offset (确认消费成功)
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("[Kafka MQ] 提交 Offset 失败: %v", err)
		}
	}
}

// Close 关闭消费者
func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
