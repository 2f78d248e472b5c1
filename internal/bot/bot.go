package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"vendbot/internal/models"
	"vendbot/internal/pkg/utils"
	"vendbot/internal/repository"
	"vendbot/internal/service"
)

const (
	btnBuy      = "🛒 Buy service"
	btnTrial    = "🧪 Free trial"
	btnServices = "💼 My services"
	btnWallet   = "💰 Wallet"
)

// Deps bundles everything the bot handlers need.
type Deps struct {
	Orders   *service.OrderService
	Wallet   *service.WalletService
	Subs     *service.SubscriptionService
	Plans    *service.PlanService
	Accounts *repository.AccountRepository
	Settings *repository.SettingRepository
}

// Bot wraps the telebot instance and handlers. Wizard state (awaiting a
// coupon code, awaiting a receipt) is persisted through the settings table so
// a restart does not lose a half-done purchase.
type Bot struct {
	tb      *tele.Bot
	deps    Deps
	adminID int64
	logger  *zap.Logger
}

// New attaches the shop handlers to an already constructed telebot instance.
func New(tb *tele.Bot, adminID int64, deps Deps, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{tb: tb, deps: deps, adminID: adminID, logger: logger}
	b.registerHandlers()
	return b
}

// Telebot returns the underlying telebot instance.
func (b *Bot) Telebot() *tele.Bot {
	return b.tb
}

// Start begins long polling.
func (b *Bot) Start() {
	if err := b.tb.RemoveWebhook(true); err != nil {
		b.logger.Warn("Failed to remove webhook before long polling", zap.Error(err))
	}
	b.logger.Info("Starting Telegram bot", zap.String("mode", "polling"))
	b.tb.Start()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle(tele.OnText, b.handleText)
	b.tb.Handle(tele.OnPhoto, b.handlePhoto)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
}

func (b *Bot) handleStart(c tele.Context) error {
	chatID := c.Chat().ID

	if _, err := b.deps.Accounts.FindOrCreate(chatID); err != nil {
		b.logger.Error("failed to register account", zap.Int64("chat_id", chatID), zap.Error(err))
		return c.Send("Something went wrong, try again later.")
	}
	_ = b.deps.Settings.ClearIntent(chatID)

	return b.sendMainMenu(c)
}

func (b *Bot) sendMainMenu(c tele.Context) error {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(btnBuy), menu.Text(btnTrial)),
		menu.Row(menu.Text(btnServices), menu.Text(btnWallet)),
	)
	return c.Send("What would you like to do?", menu)
}

// ── Text routing ──────────────────────────────────────────────────────

func (b *Bot) handleText(c tele.Context) error {
	chatID := c.Chat().ID
	text := strings.TrimSpace(c.Message().Text)

	intent, err := b.deps.Settings.GetIntent(chatID)
	if err != nil {
		b.logger.Warn("failed to load intent", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	if strings.HasPrefix(intent, "coupon:") {
		return b.handleCouponInput(c, strings.TrimPrefix(intent, "coupon:"), text)
	}

	switch text {
	case btnBuy:
		return b.showPlans(c)
	case btnTrial:
		return b.provisionTrial(c)
	case btnServices:
		return b.listServices(c)
	case btnWallet:
		return b.showWallet(c)
	default:
		return b.sendMainMenu(c)
	}
}

// ── Buy flow ──────────────────────────────────────────────────────────

func (b *Bot) showPlans(c tele.Context) error {
	plans, err := b.deps.Plans.ListActive()
	if err != nil {
		b.logger.Error("failed to list plans", zap.Error(err))
		return c.Send("Could not load plans, try again later.")
	}
	if len(plans) == 0 {
		return c.Send("No plans available right now.")
	}

	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, plan := range plans {
		label := fmt.Sprintf("%s | %dGB / %dd | %s %s",
			plan.Title, plan.DataLimit>>30, plan.DurationDays, utils.FormatNumber(plan.Price.IntPart()), plan.Currency)
		rows = append(rows, menu.Row(menu.Data(label, "buy", fmt.Sprintf("%d", plan.TemplateID))))
	}
	menu.Inline(rows...)
	return c.Send("Pick a plan:", menu)
}

func (b *Bot) startOrder(c tele.Context, templateID int64) error {
	chatID := c.Chat().ID

	order, err := b.deps.Orders.Create(chatID, templateID)
	if err != nil {
		b.logger.Error("order create failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return c.Send("Could not create the order, try again later.")
	}

	if err := b.deps.Settings.SetIntent(chatID, "coupon:"+order.ID); err != nil {
		b.logger.Warn("failed to persist intent", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("No coupon, continue", "skipcoupon", order.ID)))
	return c.Send(fmt.Sprintf(
		"Order %s created.\nAmount: %s %s\n\nEnter a coupon code, or continue without one.",
		order.ID, order.Amount.StringFixed(0), order.Currency), menu)
}

func (b *Bot) handleCouponInput(c tele.Context, orderID, code string) error {
	chatID := c.Chat().ID

	code = strings.TrimSpace(utils.NormalizeDigits(code))

	discount, verdict, err := b.deps.Orders.ApplyCoupon(orderID, code)
	if err != nil {
		b.logger.Error("coupon apply failed", zap.String("order_id", orderID), zap.Error(err))
		return c.Send("Could not apply the coupon, try again.")
	}
	if verdict != service.VerdictOK {
		return c.Send(fmt.Sprintf("Coupon rejected (%s). Try another code or continue without one.", verdict))
	}

	b.askForReceipt(chatID)
	return c.Send(fmt.Sprintf("Coupon applied, %s off. Now send a photo of your payment receipt.", discount.StringFixed(0)))
}

func (b *Bot) askForReceipt(chatID int64) {
	if err := b.deps.Settings.SetIntent(chatID, "receipt"); err != nil {
		b.logger.Warn("failed to persist intent", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handlePhoto(c tele.Context) error {
	chatID := c.Chat().ID

	intent, _ := b.deps.Settings.GetIntent(chatID)
	if intent != "receipt" {
		return nil
	}

	photo := c.Message().Photo
	if photo == nil {
		return nil
	}

	// Newest pending order without a receipt gets the photo.
	orders, err := b.deps.Orders.ListByAccount(chatID, 10)
	if err != nil {
		return c.Send("Could not find your order, use /start.")
	}
	var orderID string
	for _, o := range orders {
		if o.Status == models.OrderPending && o.ReceiptFile == "" {
			orderID = o.ID
			break
		}
	}
	if orderID == "" {
		_ = b.deps.Settings.ClearIntent(chatID)
		return c.Send("No order is waiting for a receipt.")
	}

	err = b.deps.Orders.AttachReceipt(orderID, chatID, photo.FileID, c.Message().Caption)
	switch {
	case errors.Is(err, service.ErrReceiptExists):
		return c.Send("A receipt is already attached to this order.")
	case err != nil:
		b.logger.Error("receipt attach failed", zap.String("order_id", orderID), zap.Error(err))
		return c.Send("Could not attach the receipt, try again.")
	}

	_ = b.deps.Settings.ClearIntent(chatID)
	b.notifyAdminOfReceipt(orderID, chatID, photo.FileID)
	return c.Send("Receipt received. You will be notified once payment is confirmed.")
}

func (b *Bot) notifyAdminOfReceipt(orderID string, chatID int64, fileID string) {
	if b.adminID == 0 {
		return
	}
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("✅ Approve", "approve", orderID),
		menu.Data("❌ Reject", "reject", orderID),
	))
	photo := &tele.Photo{
		File:    tele.File{FileID: fileID},
		Caption: fmt.Sprintf("Receipt for order %s from %d", orderID, chatID),
	}
	if _, err := b.tb.Send(tele.ChatID(b.adminID), photo, menu); err != nil {
		b.logger.Warn("failed to forward receipt to admin", zap.Error(err))
	}
}

// ── Callbacks ─────────────────────────────────────────────────────────

func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	// telebot joins the button's unique tag and payload with "|" after a
	// leading \f marker.
	parts := strings.SplitN(strings.TrimPrefix(cb.Data, "\f"), "|", 2)
	unique := parts[0]
	data := ""
	if len(parts) == 2 {
		data = parts[1]
	}

	switch unique {
	case "buy":
		var templateID int64
		fmt.Sscanf(data, "%d", &templateID)
		_ = c.Respond()
		return b.startOrder(c, templateID)
	case "skipcoupon":
		b.askForReceipt(c.Chat().ID)
		_ = c.Respond()
		return c.Send("Send a photo of your payment receipt.")
	case "approve":
		return b.adminApprove(c, data)
	case "reject":
		return b.adminReject(c, data)
	default:
		return c.Respond()
	}
}

func (b *Bot) adminApprove(c tele.Context, orderID string) error {
	if c.Sender() == nil || c.Sender().ID != b.adminID {
		return c.Respond(&tele.CallbackResponse{Text: "Not allowed"})
	}

	svc, err := b.deps.Orders.Approve(context.Background(), orderID, c.Sender().ID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyProcessed) {
			return c.Respond(&tele.CallbackResponse{Text: "Already processed"})
		}
		var pf *service.ProvisionFailedError
		if errors.As(err, &pf) {
			return c.Respond(&tele.CallbackResponse{
				Text: "Provisioning failed, order stays paid. Tap approve to retry.", ShowAlert: true})
		}
		b.logger.Error("approve failed", zap.String("order_id", orderID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Approve failed", ShowAlert: true})
	}

	order, err := b.deps.Orders.Get(orderID)
	if err == nil {
		text := fmt.Sprintf("✅ Your order %s is ready!\n\nSubscription link:\n%s", orderID, svc.SubToken)
		if _, err := b.tb.Send(tele.ChatID(order.AccountID), text); err != nil {
			b.logger.Warn("failed to deliver subscription link", zap.Error(err))
		}
	}

	_ = c.Respond(&tele.CallbackResponse{Text: "Provisioned"})
	return c.Edit(fmt.Sprintf("Order %s approved and provisioned.", orderID))
}

func (b *Bot) adminReject(c tele.Context, orderID string) error {
	if c.Sender() == nil || c.Sender().ID != b.adminID {
		return c.Respond(&tele.CallbackResponse{Text: "Not allowed"})
	}

	if err := b.deps.Orders.Reject(orderID, c.Sender().ID, "rejected via bot"); err != nil {
		if errors.Is(err, service.ErrAlreadyProcessed) {
			return c.Respond(&tele.CallbackResponse{Text: "Already processed"})
		}
		b.logger.Error("reject failed", zap.String("order_id", orderID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Reject failed", ShowAlert: true})
	}

	order, err := b.deps.Orders.Get(orderID)
	if err == nil {
		_, _ = b.tb.Send(tele.ChatID(order.AccountID),
			fmt.Sprintf("❌ Your order %s was rejected. Contact support if you already paid.", orderID))
	}

	_ = c.Respond(&tele.CallbackResponse{Text: "Rejected"})
	return c.Edit(fmt.Sprintf("Order %s rejected.", orderID))
}

// ── Trial / services / wallet ─────────────────────────────────────────

func (b *Bot) provisionTrial(c tele.Context) error {
	chatID := c.Chat().ID

	svc, err := b.deps.Subs.ProvisionTrial(context.Background(), chatID)
	if err != nil {
		if errors.Is(err, service.ErrTrialAlreadyUsed) {
			return c.Send("You already used your free trial.")
		}
		b.logger.Error("trial failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return c.Send("Could not provision the trial, try again later.")
	}
	return c.Send(fmt.Sprintf("🧪 Trial ready!\n\nSubscription link:\n%s", svc.SubToken))
}

func (b *Bot) listServices(c tele.Context) error {
	chatID := c.Chat().ID

	services, err := b.deps.Subs.ListByAccount(chatID)
	if err != nil {
		b.logger.Error("failed to list services", zap.Int64("chat_id", chatID), zap.Error(err))
		return c.Send("Could not load your services.")
	}
	if len(services) == 0 {
		return c.Send("You have no services yet.")
	}

	var sb strings.Builder
	sb.WriteString("Your services:\n")
	for _, svc := range services {
		fmt.Fprintf(&sb, "\n• %s (%s)\n%s\n", svc.PanelUsername, svc.Status, svc.SubToken)
	}
	return c.Send(sb.String())
}

func (b *Bot) showWallet(c tele.Context) error {
	chatID := c.Chat().ID

	balance, err := b.deps.Wallet.Balance(chatID)
	if err != nil {
		return c.Send("Could not load your wallet.")
	}
	return c.Send(fmt.Sprintf("💰 Balance: %s", utils.FormatNumber(balance.IntPart())))
}
