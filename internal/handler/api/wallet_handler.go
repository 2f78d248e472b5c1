package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/service"
)

// WalletHandler exposes balance queries and manual credit/debit adjustments.
type WalletHandler struct {
	wallet *service.WalletService
	logger *zap.Logger
}

func NewWalletHandler(wallet *service.WalletService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, logger: logger}
}

// Handle routes wallet API requests.
// POST /api/wallet
func (h *WalletHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "wallet_balance":
		return h.balance(c, body)
	case "wallet_credit":
		return h.credit(c, body)
	case "wallet_debit":
		return h.debit(c, body)
	case "wallet_history":
		return h.history(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *WalletHandler) balance(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	if chatID == 0 {
		return errorResponse(c, "chat_id is required")
	}
	balance, err := h.wallet.Balance(chatID)
	if err != nil {
		return errorResponse(c, "Account not found")
	}
	return successResponse(c, "Successful", map[string]interface{}{"balance": balance})
}

func (h *WalletHandler) credit(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	amount, ok := getDecimalField(body, "amount")
	if chatID == 0 || !ok || !amount.IsPositive() {
		return errorResponse(c, "chat_id and a positive amount are required")
	}

	if err := h.wallet.Credit(chatID, amount, "admin", getStringField(body, "note")); err != nil {
		h.logger.Error("wallet credit failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return errorResponse(c, "Failed to credit wallet")
	}
	return successResponse(c, "Wallet credited", nil)
}

func (h *WalletHandler) debit(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	amount, ok := getDecimalField(body, "amount")
	if chatID == 0 || !ok || !amount.IsPositive() {
		return errorResponse(c, "chat_id and a positive amount are required")
	}

	err := h.wallet.Debit(chatID, amount, "admin", getStringField(body, "note"))
	if err != nil {
		var insufficient *service.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			return c.JSON(http.StatusOK, models.APIResponse{
				Status: false,
				Msg:    "Insufficient balance",
				Obj: map[string]interface{}{
					"required":  insufficient.Required,
					"balance":   insufficient.Balance,
					"shortfall": insufficient.Shortfall,
				},
			})
		}
		h.logger.Error("wallet debit failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return errorResponse(c, "Failed to debit wallet")
	}
	return successResponse(c, "Wallet debited", nil)
}

func (h *WalletHandler) history(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	if chatID == 0 {
		return errorResponse(c, "chat_id is required")
	}
	limit := getIntField(body, "limit", 50)

	txs, err := h.wallet.History(chatID, limit)
	if err != nil {
		return errorResponse(c, "Failed to retrieve history")
	}
	return successResponse(c, "Successful", txs)
}
