// Package notify pushes operator messages (critical stock, partial commits, daily
// summaries) through WhatsApp.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/domain/models"
	client "github.com/mamadbah2/batchledger/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// Notifier is what the scheduler and the HTTP layer need.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
	NotifyOperator(ctx context.Context, message string) error
}

// WhatsAppNotifier delivers through the WhatsApp Cloud API.
type WhatsAppNotifier struct {
	cfg    config.WhatsAppConfig
	client client.Client
	logger *zap.Logger
}

// NewWhatsAppNotifier wires a notifier. A nil client turns every send into a logged no-op.
func NewWhatsAppNotifier(cfg config.WhatsAppConfig, c client.Client, logger *zap.Logger) *WhatsAppNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppNotifier{cfg: cfg, client: c, logger: logger}
}

// SendOutbound lets operators push a message to any recipient.
func (n *WhatsAppNotifier) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: recipient and message are required", models.ErrInvalidInput)
	}
	if n.client == nil {
		n.logger.Info("notifications disabled, message dropped", zap.String("to", req.To))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := n.client.SendTextMessage(ctx, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", req.To, err)
	}
	return nil
}

// NotifyOperator sends to the configured alert recipient.
func (n *WhatsAppNotifier) NotifyOperator(ctx context.Context, message string) error {
	if n.cfg.AlertRecipient == "" {
		n.logger.Debug("no alert recipient configured", zap.String("message", message))
		return nil
	}
	return n.SendOutbound(ctx, models.OutboundMessageRequest{To: n.cfg.AlertRecipient, Message: message})
}

// AlertMessage renders critical-stock alerts. Empty when there is nothing to report.
func AlertMessage(alerts []models.Alert) string {
	if len(alerts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Critical stock")
	for _, alert := range alerts {
		fmt.Fprintf(&b, "\n- %s: %s kg left (limit %s kg)", alert.Ingredient, alert.RemainingKg.StringFixed(2), alert.LimitKg.StringFixed(2))
	}
	return b.String()
}

// PartialCommitMessage renders unfinished production commits.
func PartialCommitMessage(problems []error) string {
	if len(problems) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d production records need repair", len(problems))
	for _, p := range problems {
		fmt.Fprintf(&b, "\n- %s", p.Error())
	}
	return b.String()
}
