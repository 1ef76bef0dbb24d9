// Package telegram posts complaint notifications to a staff Telegram chat
// and answers simple status queries there.
package telegram

import (
	"context"
	"fmt"
	"slices"

	"resolvex/backend/internal/localization"
	"resolvex/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const queueSize = 64

// Sender is the part of the Bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Directory resolves names shown in notifications.
type Directory interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
}

type notice struct {
	ev models.ComplaintEvent
	c  models.Complaint
}

// Notifier implements complaint.Notifier. Notify only queues; Run delivers,
// so a slow Telegram never delays a complaint change.
type Notifier struct {
	Bot       Sender
	ChatID    int64
	Lang      string
	Localizer *localization.Localizer
	Directory Directory

	queue chan notice
	log   zerolog.Logger
}

// NewNotifier authorizes against the Bot API with token.
func NewNotifier(token string, chatID int64, lang string, loc *localization.Localizer, dir Directory, log zerolog.Logger) (*Notifier, *tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	bot.Debug = false
	log.Info().Str("account", bot.Self.UserName).Msg("telegram bot authorized")
	return NewNotifierWithSender(bot, chatID, lang, loc, dir, log), bot, nil
}

// NewNotifierWithSender builds a Notifier over any Sender. A language with
// no loaded translations falls back to the default one.
func NewNotifierWithSender(bot Sender, chatID int64, lang string, loc *localization.Localizer, dir Directory, log zerolog.Logger) *Notifier {
	log = log.With().Str("component", "telegram").Logger()
	if !slices.Contains(loc.Languages(), lang) {
		log.Warn().Str("lang", lang).Str("fallback", localization.DefaultLang).Msg("no translations for language")
		lang = localization.DefaultLang
	}
	return &Notifier{
		Bot:       bot,
		ChatID:    chatID,
		Lang:      lang,
		Localizer: loc,
		Directory: dir,
		queue:     make(chan notice, queueSize),
		log:       log,
	}
}

// Notify queues assignment and escalation events. Other events and events
// arriving while the queue is full are dropped.
func (n *Notifier) Notify(_ context.Context, ev models.ComplaintEvent, c *models.Complaint) {
	if ev.Action != models.ActionAssign && ev.Action != models.ActionEscalate {
		return
	}
	select {
	case n.queue <- notice{ev: ev, c: *c}:
	default:
		n.log.Warn().Uint("complaint_id", ev.ComplaintID).Msg("notification queue full, dropping")
	}
}

// Run delivers queued notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case nt := <-n.queue:
			n.deliver(ctx, nt)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, nt notice) {
	text := n.render(ctx, nt)
	if text == "" {
		return
	}
	if _, err := n.Bot.Send(tgbotapi.NewMessage(n.ChatID, text)); err != nil {
		n.log.Error().Err(err).Uint("complaint_id", nt.ev.ComplaintID).Msg("send telegram notification")
	}
}

func (n *Notifier) render(ctx context.Context, nt notice) string {
	c := nt.c
	switch nt.ev.Action {
	case models.ActionAssign:
		if c.AssignedStaffID == nil {
			return ""
		}
		return n.Localizer.Format(n.Lang, "notify_assigned", c.ID, c.Title, n.staffName(ctx, *c.AssignedStaffID))
	case models.ActionEscalate:
		return n.Localizer.Format(n.Lang, "notify_escalated", c.ID, c.Title, n.priority(c.Priority), c.EscalationReason)
	}
	return ""
}

func (n *Notifier) staffName(ctx context.Context, id uint) string {
	if n.Directory != nil {
		if u, err := n.Directory.GetUser(ctx, id); err == nil {
			return u.FullName
		}
	}
	return n.Localizer.Format(n.Lang, "notify_unknown_staff", id)
}

func (n *Notifier) priority(p models.Priority) string {
	return n.Localizer.GetString(n.Lang, "priority_"+string(p))
}
