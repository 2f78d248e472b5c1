package notify

import (
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// TelegramNotifier pushes operator alerts to the admin chat. Delivery is
// best-effort: a failed send is logged and dropped, never surfaced to the
// caller.
type TelegramNotifier struct {
	bot     *tele.Bot
	adminID int64
	logger  *zap.Logger
}

func NewTelegramNotifier(bot *tele.Bot, adminID int64, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{bot: bot, adminID: adminID, logger: logger}
}

func (n *TelegramNotifier) NotifyAdmin(text string) {
	if n.bot == nil || n.adminID == 0 {
		return
	}
	if _, err := n.bot.Send(tele.ChatID(n.adminID), text); err != nil {
		n.logger.Warn("admin notify failed", zap.Error(err))
	}
}
