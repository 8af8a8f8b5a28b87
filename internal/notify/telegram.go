package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/models"
)

// Notifier pushes trade lifecycle messages to a Telegram chat. A nil
// Notifier is valid and drops everything, so callers never guard.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// New connects to Telegram. Empty token or chat ID returns nil.
func New(token string, chatID int64) *Notifier {
	if token == "" || chatID == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Msg("telegram disabled, connection failed")
		return nil
	}

	return &Notifier{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notify").Logger(),
	}
}

func (n *Notifier) send(text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Msg("telegram send failed")
	}
}

// Entry announces a newly opened position.
func (n *Notifier) Entry(pos *models.Position, confidence float64) {
	n.send(fmt.Sprintf(
		"🟢 ENTRY %s %s\nPrice: %.3f\nSize: $%.2f\nConfidence: %.0f%%",
		pos.Asset, pos.Side, pos.EntryPrice, pos.Size, confidence*100,
	))
}

// Exit announces a closed position with its realized result.
func (n *Notifier) Exit(pos *models.Position, exitPrice, pnl float64, reason string) {
	icon := "🔴"
	if pnl >= 0 {
		icon = "💰"
	}
	n.send(fmt.Sprintf(
		"%s EXIT %s %s\nEntry: %.3f → Exit: %.3f\nPnL: $%+.2f\nReason: %s",
		icon, pos.Asset, pos.Side, pos.EntryPrice, exitPrice, pnl, reason,
	))
}

// Redeemed announces a winning position cashed out after resolution.
func (n *Notifier) Redeemed(asset string, payout float64) {
	n.send(fmt.Sprintf("🏆 REDEEMED %s\nPayout: $%.2f", asset, payout))
}

// KillSwitch announces that trading has been halted.
func (n *Notifier) KillSwitch(balance, threshold float64) {
	n.send(fmt.Sprintf(
		"⛔ KILL SWITCH\nBalance $%.2f fell below $%.2f, no new entries",
		balance, threshold,
	))
}

// Info sends a free-form status line.
func (n *Notifier) Info(text string) {
	n.send(text)
}
