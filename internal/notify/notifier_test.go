package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/internal/config"
)

type fakeChat struct {
	mu   sync.Mutex
	to   []string
	body []string
	err  error
}

func (f *fakeChat) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.body = append(f.body, body)
	return "SM1", f.err
}

type fakeEmail struct {
	msgs []EmailMessage
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, msg EmailMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestNotifierBooking(t *testing.T) {
	cat := catalog.New(config.ProductLinks{})
	chat := &fakeChat{}
	email := &fakeEmail{}
	n := New(Config{
		Chat:        chat,
		Subscribers: []string{"5215500000001", "5215500000002"},
		Email:       email,
		OwnerEmail:  "owner@example.com",
		Catalog:     cat,
	})

	res := &booking.Result{Start: time.Date(2025, 6, 6, 7, 0, 0, 0, time.UTC), Free: true}
	n.NotifyBooking(context.Background(), "5215512345678", res, "dolor de espalda")

	want := cat.OwnerBooking("5215512345678", "2025-06-06 07:00", true, "dolor de espalda")
	assert.Equal(t, []string{"5215500000001", "5215500000002"}, chat.to)
	assert.Equal(t, []string{want, want}, chat.body)
	if assert.Len(t, email.msgs, 1) {
		assert.Equal(t, "owner@example.com", email.msgs[0].To)
		assert.Equal(t, want, email.msgs[0].Body)
	}

	n.NotifyBooking(context.Background(), "521", nil, "")
	assert.Len(t, chat.to, 2)
}

func TestNotifierOrderFailuresAreSwallowed(t *testing.T) {
	cat := catalog.New(config.ProductLinks{})
	chat := &fakeChat{err: errors.New("twilio down")}
	email := &fakeEmail{err: errors.New("sendgrid down")}
	n := New(Config{Chat: chat, Subscribers: []string{"1", "2"}, Email: email, OwnerEmail: "o@example.com", Catalog: cat})

	assert.NotPanics(t, func() {
		n.NotifyOrder(context.Background(), "Ana", "5215512345678", []string{"Curso online"})
	})
	assert.Len(t, chat.to, 2, "every subscriber is attempted")
	assert.Len(t, email.msgs, 1)
}

func TestNotifierWithoutEmail(t *testing.T) {
	chat := &fakeChat{}
	n := New(Config{Chat: chat, Subscribers: []string{"1"}, Catalog: catalog.New(config.ProductLinks{})})
	n.NotifyOrder(context.Background(), "Ana", "521", nil)
	assert.Len(t, chat.to, 1)
}
