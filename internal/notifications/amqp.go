package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/teamlounge/lounge-server/internal/models"
)

// Routing keys on the topic exchange.
const (
	routingVerificationCode = "auth.verification_code"
	routingRecoveryCode     = "auth.recovery_code"
	routingReportCreated    = "moderation.report_created"
)

// Publisher pushes out-of-band events (verification mails, moderation alerts)
// onto an AMQP topic exchange. Downstream workers do the actual delivery.
type Publisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects lazily; a broker that is down at boot only costs the
// first publish a reconnect attempt.
func NewPublisher(url, exchange string) *Publisher {
	return &Publisher{url: url, exchange: exchange}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *Publisher) PublishVerificationCode(ctx context.Context, email, code string) error {
	return p.publish(ctx, routingVerificationCode, map[string]string{
		"email": email,
		"code":  code,
	})
}

func (p *Publisher) PublishRecoveryCode(ctx context.Context, email, code string) error {
	return p.publish(ctx, routingRecoveryCode, map[string]string{
		"email": email,
		"code":  code,
	})
}

func (p *Publisher) PublishReportCreated(ctx context.Context, report *models.Report) error {
	return p.publish(ctx, routingReportCreated, map[string]interface{}{
		"report_id":    report.ID.String(),
		"content_type": report.ContentType,
		"content_id":   report.ContentID,
		"reason":       report.Reason,
	})
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			slog.Warn("failed to close broker connection", "error", err)
		}
	}
	p.conn = nil
	p.ch = nil
}

// LogNotifier is the fallback when no broker is configured: codes and events
// land in the server log instead of a queue.
type LogNotifier struct{}

func (LogNotifier) PublishVerificationCode(_ context.Context, email, code string) error {
	slog.Info("verification code issued", "email", email, "code", code)
	return nil
}

func (LogNotifier) PublishRecoveryCode(_ context.Context, email, code string) error {
	slog.Info("recovery code issued", "email", email, "code", code)
	return nil
}

func (LogNotifier) PublishReportCreated(_ context.Context, report *models.Report) error {
	slog.Info("report created", "report_id", report.ID, "reason", report.Reason)
	return nil
}
