package mq

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"schoolbills/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// amqpChannel 投递用到的 channel 方法
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// dialFunc 建立连接并声明 exchange
type dialFunc func(cfg *config.RabbitMQConfig) (io.Closer, amqpChannel, error)

// RabbitPublisher 投递到 topic 类型的 exchange，routing key 即 topic
type RabbitPublisher struct {
	cfg  *config.RabbitMQConfig
	log  *logrus.Logger
	dial dialFunc

	mu      sync.Mutex
	conn    io.Closer
	channel amqpChannel
}

func NewRabbitPublisher(cfg *config.RabbitMQConfig, log *logrus.Logger) (*RabbitPublisher, error) {
	return newRabbitPublisher(cfg, log, dialAMQP)
}

func newRabbitPublisher(cfg *config.RabbitMQConfig, log *logrus.Logger, dial dialFunc) (*RabbitPublisher, error) {
	p := &RabbitPublisher{cfg: cfg, log: log, dial: dial}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialAMQP(cfg *config.RabbitMQConfig) (io.Closer, amqpChannel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("打开 channel 失败: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("声明 exchange 失败: %w", err)
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) connect() error {
	conn, ch, err := p.dial(p.cfg)
	if err != nil {
		return err
	}
	p.conn = conn
	p.channel = ch

	p.log.WithField("exchange", p.cfg.Exchange).Info("RabbitMQ 连接成功")
	return nil
}

// Publish 连接断开时重连一次再投递，仍失败则交给 outbox 下一轮重试
func (p *RabbitPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if p.conn != nil {
			p.conn.Close()
			p.conn, p.channel = nil, nil
		}
		if err := p.connect(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		topic,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
