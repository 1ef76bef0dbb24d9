package telegram

import (
	"context"
	"strconv"
	"strings"

	"resolvex/backend/internal/apperr"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Updates is the polling side of the Bot API.
type Updates interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Listen answers /status <id> in the staff chat until ctx is done.
// Messages from any other chat are ignored.
func (n *Notifier) Listen(ctx context.Context, src Updates) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := src.GetUpdatesChan(u)
	defer src.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			n.handleUpdate(ctx, update)
		}
	}
}

func (n *Notifier) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() || msg.Chat.ID != n.ChatID {
		return
	}
	var reply string
	switch msg.Command() {
	case "status":
		reply = n.statusReply(ctx, msg.CommandArguments())
	case "help", "start":
		reply = n.Localizer.GetString(n.Lang, "cmd_help")
	default:
		return
	}
	if _, err := n.Bot.Send(tgbotapi.NewMessage(n.ChatID, reply)); err != nil {
		n.log.Error().Err(err).Msg("send telegram reply")
	}
}

func (n *Notifier) statusReply(ctx context.Context, arg string) string {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
	if err != nil || id == 0 {
		return n.Localizer.GetString(n.Lang, "cmd_status_usage")
	}
	c, err := n.Directory.GetComplaint(ctx, uint(id))
	if apperr.KindOf(err) == apperr.KindNotFound {
		return n.Localizer.Format(n.Lang, "cmd_status_not_found", id)
	}
	if err != nil {
		n.log.Error().Err(err).Uint64("complaint_id", id).Msg("load complaint for status command")
		return n.Localizer.GetString(n.Lang, "cmd_error")
	}

	text := n.Localizer.Format(n.Lang, "cmd_status", c.ID, c.Title, c.Status, n.priority(c.Priority))
	if c.Escalated {
		text += "\n" + n.Localizer.GetString(n.Lang, "cmd_status_escalated")
	}
	return text
}
