// Package notify announces orders and bookings to the business owner.
package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// ChatSender delivers a WhatsApp message to a user id.
type ChatSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Notifier fans a notification out to the WhatsApp subscribers and, when an
// email sender is configured, to the owner mailbox. Failures are logged only.
type Notifier struct {
	chat        ChatSender
	subscribers []string
	email       EmailSender
	ownerEmail  string
	catalog     *catalog.Catalog
	logger      *logging.Logger
}

// Config wires a Notifier. Email and OwnerEmail are optional.
type Config struct {
	Chat        ChatSender
	Subscribers []string
	Email       EmailSender
	OwnerEmail  string
	Catalog     *catalog.Catalog
	Logger      *logging.Logger
}

func New(cfg Config) *Notifier {
	if cfg.Catalog == nil {
		panic("notify: catalog required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Notifier{
		chat:        cfg.Chat,
		subscribers: cfg.Subscribers,
		email:       cfg.Email,
		ownerEmail:  cfg.OwnerEmail,
		catalog:     cfg.Catalog,
		logger:      cfg.Logger.Named("notify"),
	}
}

// NotifyBooking announces a committed booking.
func (n *Notifier) NotifyBooking(ctx context.Context, userID string, res *booking.Result, note string) {
	if res == nil {
		return
	}
	slot := res.Start.Format("2006-01-02 15:04")
	body := n.catalog.OwnerBooking(userID, slot, res.Free, note)
	n.broadcast(ctx, fmt.Sprintf("Nueva cita: %s", slot), body)
}

// NotifyOrder announces a storefront order.
func (n *Notifier) NotifyOrder(ctx context.Context, name, phone string, items []string) {
	body := n.catalog.OwnerOrder(name, phone, items)
	n.broadcast(ctx, fmt.Sprintf("Nuevo pedido de %s", name), body)
}

func (n *Notifier) broadcast(ctx context.Context, subject, body string) {
	if n.chat != nil {
		for _, sub := range n.subscribers {
			if _, err := n.chat.Send(ctx, sub, body); err != nil {
				n.logger.Warn("subscriber notification failed", "subscriber", sub, "error", err)
			}
		}
	}
	if n.email != nil && n.ownerEmail != "" {
		if err := n.email.Send(ctx, EmailMessage{To: n.ownerEmail, Subject: subject, Body: body}); err != nil {
			n.logger.Warn("owner email failed", "error", err)
		}
	}
}
