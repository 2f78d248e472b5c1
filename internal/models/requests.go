package models

// APIRequest is the common request structure for all API endpoints; routing
// happens via the "actions" field in the JSON body.
type APIRequest struct {
	Actions string `json:"actions"`
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PaginatedResponse wraps list results with pagination info.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// --- Order API request payloads ---

type OrderCreateRequest struct {
	Actions    string `json:"actions"`
	ChatID     int64  `json:"chat_id"`
	TemplateID int64  `json:"template_id"`
}

type OrderDetailRequest struct {
	Actions string `json:"actions"`
	OrderID string `json:"order_id"`
}

type OrderReceiptRequest struct {
	Actions string `json:"actions"`
	OrderID string `json:"order_id"`
	ChatID  int64  `json:"chat_id"`
	File    string `json:"file"`
	Note    string `json:"note,omitempty"`
}

type OrderDecisionRequest struct {
	Actions string `json:"actions"`
	OrderID string `json:"order_id"`
	AdminID int64  `json:"admin_id"`
	Reason  string `json:"reason,omitempty"`
}

// --- Coupon API request payloads ---

type CouponCheckRequest struct {
	Actions string `json:"actions"`
	Code    string `json:"code"`
	ChatID  int64  `json:"chat_id"`
	Amount  string `json:"amount"`
}

type CouponApplyRequest struct {
	Actions string `json:"actions"`
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
}

// --- Wallet API request payloads ---

type WalletAdjustRequest struct {
	Actions string `json:"actions"`
	ChatID  int64  `json:"chat_id"`
	Amount  string `json:"amount"`
	Note    string `json:"note,omitempty"`
}

// --- Service API request payloads ---

type ServiceActionRequest struct {
	Actions   string `json:"actions"`
	ServiceID uint   `json:"service_id"`
	ChatID    int64  `json:"chat_id,omitempty"`
	DeltaGB   int64  `json:"delta_gb,omitempty"`
	Days      int    `json:"days,omitempty"`
	Status    string `json:"status,omitempty"`
}
