package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stayhub/internal/domain"
	"stayhub/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	lookupTimeout    = 5 * time.Second
	defaultQueueSize = 64
)

// ErrQueueFull is reported to the bus when notifications arrive faster than
// they can be delivered.
var ErrQueueFull = errors.New("telegram notification queue is full")

// TelegramNotifier tells hosts about new reservations on their listings.
// Events are queued by Attach and delivered by Start, so publishers never wait
// on the Telegram API.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	users  domain.UserRepository
	queue  chan *events.Event
	logger zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, users domain.UserRepository, queueSize int, logger *zerolog.Logger) *TelegramNotifier {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &TelegramNotifier{
		bot:    bot,
		users:  users,
		queue:  make(chan *events.Event, queueSize),
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

// Attach subscribes the notifier to reservation events on the bus.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventReservationCreated, n.enqueue)
	bus.Subscribe(events.EventReservationCancelled, n.enqueue)
}

func (n *TelegramNotifier) enqueue(event *events.Event) error {
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start delivers queued notifications until ctx is cancelled.
func (n *TelegramNotifier) Start(ctx context.Context) {
	n.logger.Info().Msg("started")
	defer n.logger.Info().Msg("stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			if err := n.dispatch(ctx, event); err != nil {
				n.logger.Error().Err(err).Str("event_type", event.Type).Msg("host notification failed")
			}
		}
	}
}

func (n *TelegramNotifier) dispatch(ctx context.Context, event *events.Event) error {
	switch event.Type {
	case events.EventReservationCreated:
		return n.notifyHost(ctx, event, formatCreated)
	case events.EventReservationCancelled:
		return n.notifyHost(ctx, event, formatCancelled)
	default:
		return nil
	}
}

func (n *TelegramNotifier) HandleReservationCreated(event *events.Event) error {
	return n.notifyHost(context.Background(), event, formatCreated)
}

func (n *TelegramNotifier) HandleReservationCancelled(event *events.Event) error {
	return n.notifyHost(context.Background(), event, formatCancelled)
}

func (n *TelegramNotifier) notifyHost(ctx context.Context, event *events.Event, format func(events.ReservationEventPayload) string) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	// Hosts cancelling their own guests' stays do not need a message.
	if payload.ChangedByID != 0 && payload.ChangedByID == payload.HostID {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	host, err := n.users.GetUserByID(ctx, payload.HostID)
	if err != nil {
		return fmt.Errorf("load host %d: %w", payload.HostID, err)
	}
	if host.TelegramChatID == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(host.TelegramChatID, format(payload))
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Info().
		Int64("reservation_id", payload.ReservationID).
		Int64("host_id", payload.HostID).
		Str("event_type", event.Type).
		Msg("host notified")
	return nil
}

func formatCreated(p events.ReservationEventPayload) string {
	var sb strings.Builder
	sb.WriteString("🏠 *New reservation request*\n\n")
	fmt.Fprintf(&sb, "Listing: %s\n", escapeMarkdown(p.PropertyTitle))
	fmt.Fprintf(&sb, "Dates: %s → %s\n", p.CheckIn, p.CheckOut)
	fmt.Fprintf(&sb, "Total: %s\n", p.TotalPrice.StringFixed(2))
	fmt.Fprintf(&sb, "Reservation #%d is waiting for your confirmation.", p.ReservationID)
	return sb.String()
}

func formatCancelled(p events.ReservationEventPayload) string {
	return fmt.Sprintf("❌ *Reservation cancelled*\n\nListing: %s\nDates: %s → %s\nReservation #%d",
		escapeMarkdown(p.PropertyTitle), p.CheckIn, p.CheckOut, p.ReservationID)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
