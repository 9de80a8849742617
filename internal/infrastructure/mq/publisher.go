package mq

import (
	"context"
	"fmt"

	"schoolbills/internal/config"

	"github.com/sirupsen/logrus"
)

// Publisher 消息投递
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// NewPublisher 按配置创建投递器，driver 为 none 时返回 nil
func NewPublisher(cfg *config.MQConfig, log *logrus.Logger) (Publisher, error) {
	switch cfg.Driver {
	case config.MQDriverKafka:
		return NewKafkaPublisher(&cfg.Kafka, log)
	case config.MQDriverRabbitMQ:
		return NewRabbitPublisher(&cfg.RabbitMQ, log)
	case config.MQDriverNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("不支持的消息队列驱动: %s", cfg.Driver)
}
