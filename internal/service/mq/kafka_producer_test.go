package mq

import (
	"testing"

	"safe-core/internal/event"
)

// Relay 会向三个主题投递，生产者必须按消息路由而不是固定在一个主题上
func TestKafkaMessageCarriesTopic(t *testing.T) {
	topics := []string{event.TopicProposal, event.TopicConfirmation, event.TopicExecution}

	for _, topic := range topics {
		msg := buildMessage(topic, "0xabc", []byte(`{"safe_tx_hash":"0xabc"}`))
		if msg.Topic != topic {
			t.Errorf("消息主题错误: got %q, want %q", msg.Topic, topic)
		}
		if string(msg.Key) != "0xabc" {
			t.Errorf("分区键丢失: got %q", msg.Key)
		}
		if len(msg.Value) == 0 {
			t.Error("消息体为空")
		}
	}
}

// Writer 级别不允许再绑定 Topic，否则与逐条消息上的 Topic 冲突报错
func TestKafkaWriterNotPinnedToTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})
	defer p.Close()

	if p.writer.Topic != "" {
		t.Errorf("Writer 不应绑定固定主题, got %q", p.writer.Topic)
	}
}
