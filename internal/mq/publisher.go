package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
)

// 订单事件路由键
const (
	RoutingKeyOrderCompleted = "order.completed"
	RoutingKeyOrderPartial   = "order.partial"
)

// ErrPublisherClosed 发布器已关闭
var ErrPublisherClosed = errors.New("publisher is closed")

// OrderEvent 订单事件消息
type OrderEvent struct {
	EventID    string               `json:"event_id"`
	Type       string               `json:"type"`
	OrderID    string               `json:"order_id"`
	Status     domain.OrderStatus   `json:"status"`
	Total      float64              `json:"total"`
	Lines      []domain.ReceiptLine `json:"lines"`
	Error      string               `json:"error,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewOrderEvent 根据订单回执创建事件
func NewOrderEvent(receipt *domain.OrderReceipt) *OrderEvent {
	eventType := RoutingKeyOrderCompleted
	if !receipt.IsCompleted() {
		eventType = RoutingKeyOrderPartial
	}
	return &OrderEvent{
		EventID:    uuid.New().String(),
		Type:       eventType,
		OrderID:    receipt.OrderID,
		Status:     receipt.Status,
		Total:      receipt.Total,
		Lines:      receipt.Lines,
		Error:      receipt.Error,
		OccurredAt: receipt.CreatedAt,
	}
}

// Publisher 订单事件发布接口
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event *OrderEvent) error
	Close() error
}

// NopPublisher 不发送任何消息，MQ未启用时使用
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(ctx context.Context, event *OrderEvent) error { return nil }
func (NopPublisher) Close() error                                                   { return nil }

// BuildMessage 构建持久化的JSON消息
func BuildMessage(event *OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	}, nil
}

// channel 发布所需的AMQP通道能力
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// session 一次连接及其通道
type session struct {
	ch   channel
	conn io.Closer
}

type dialFunc func(cfg *Config) (*session, error)

// RabbitPublisher 向topic交换机发布订单事件，连接断开时在下次发布时重连
type RabbitPublisher struct {
	config *Config
	logger *zap.Logger
	dial   dialFunc

	mu      sync.Mutex
	current *session
	closed  bool
}

// NewRabbitPublisher 连接RabbitMQ并声明订单交换机
func NewRabbitPublisher(config *Config, logger *zap.Logger) (*RabbitPublisher, error) {
	return newRabbitPublisher(config, logger, dialRabbit)
}

func newRabbitPublisher(config *Config, logger *zap.Logger, dial dialFunc) (*RabbitPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mq config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := dial(config)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to RabbitMQ",
		zap.String("host", config.Host),
		zap.String("exchange", config.Exchange))

	return &RabbitPublisher{
		config:  config,
		logger:  logger,
		dial:    dial,
		current: s,
	}, nil
}

func dialRabbit(cfg *Config) (*session, error) {
	conn, err := amqp.DialConfig(cfg.GetConnectionURL(), amqp.Config{
		Heartbeat:       cfg.HeartbeatInterval,
		TLSClientConfig: cfg.GetTLSConfig(),
		Locale:          "en_US",
		Dial:            amqp.DefaultDial(cfg.ConnectionTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &session{ch: ch, conn: conn}, nil
}

// PublishOrderEvent 发布订单事件，失败时按配置重试
func (p *RabbitPublisher) PublishOrderEvent(ctx context.Context, event *OrderEvent) error {
	msg, err := BuildMessage(event)
	if err != nil {
		return err
	}

	var lastErr error
	maxAttempts := p.config.MaxRetryAttempts + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := p.publishOnce(ctx, event.Type, msg)
		if err == nil {
			p.logger.Debug("order event published",
				zap.String("event_id", event.EventID),
				zap.String("order_id", event.OrderID),
				zap.String("routing_key", event.Type))
			return nil
		}
		if errors.Is(err, ErrPublisherClosed) {
			return err
		}

		lastErr = err
		p.logger.Warn("failed to publish order event",
			zap.String("order_id", event.OrderID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(p.config.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed to publish order event after %d attempts: %w", maxAttempts, lastErr)
}

// publishOnce 单次发布，会话失效时先重连
func (p *RabbitPublisher) publishOnce(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	if p.current == nil {
		s, err := p.dial(p.config)
		if err != nil {
			return err
		}
		p.current = s
		p.logger.Info("reconnected to RabbitMQ")
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := p.current.ch.PublishWithContext(publishCtx, p.config.Exchange, routingKey, false, false, msg); err != nil {
		// 丢弃失效会话，下次发布重连
		_ = p.current.conn.Close()
		p.current = nil
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close 关闭连接
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.current == nil {
		return nil
	}
	err := p.current.conn.Close()
	p.current = nil
	return err
}
