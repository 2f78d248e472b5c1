package panel

import "context"

// User is a normalized snapshot of a panel account.
type User struct {
	Username    string   `json:"username"`
	Status      string   `json:"status"` // active, disabled, limited, expired
	DataLimit   int64    `json:"data_limit"`
	UsedTraffic int64    `json:"used_traffic"`
	Expire      int64    `json:"expire"` // unix seconds, 0 = unlimited
	SubURL      string   `json:"subscription_url"`
	Links       []string `json:"links"`
	Note        string   `json:"note,omitempty"`
}

// CreateUserRequest contains params for creating a user on the panel.
// Zero DataLimit and Expire mean unlimited.
type CreateUserRequest struct {
	Username  string `json:"username"`
	DataLimit int64  `json:"data_limit"`
	Expire    int64  `json:"expire"`
	Note      string `json:"note,omitempty"`
}

// ModifyUserRequest contains params for updating a user. Nil fields are left
// untouched on the panel side.
type ModifyUserRequest struct {
	Status    string `json:"status,omitempty"`
	DataLimit *int64 `json:"data_limit,omitempty"`
	Expire    *int64 `json:"expire,omitempty"`
	Note      string `json:"note,omitempty"`
}

// UserTemplate is one purchasable template advertised by the panel. Plans are
// synced from these.
type UserTemplate struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	DataLimit  int64  `json:"data_limit"`
	ExpireDays int    `json:"expire_duration"`
}

// SystemStats is a health snapshot of the panel node.
type SystemStats struct {
	Version           string `json:"version"`
	TotalUsers        int64  `json:"total_user"`
	ActiveUsers       int64  `json:"users_active"`
	MemTotal          int64  `json:"mem_total"`
	MemUsed           int64  `json:"mem_used"`
	IncomingBandwidth int64  `json:"incoming_bandwidth"`
	OutgoingBandwidth int64  `json:"outgoing_bandwidth"`
}

// API is the panel surface the rest of the system consumes. MarzbanClient is
// the production implementation; tests substitute fakes.
type API interface {
	Authenticate(ctx context.Context) error
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	ModifyUser(ctx context.Context, username string, req ModifyUserRequest) (*User, error)
	DeleteUser(ctx context.Context, username string) error
	ResetUser(ctx context.Context, username string) error
	RevokeSubscription(ctx context.Context, username string) (string, error)
	ListExpired(ctx context.Context, before int64) ([]string, error)
	DeleteExpired(ctx context.Context, before int64) ([]string, error)
	GetInboundTags(ctx context.Context) ([]string, error)
	GetUserTemplates(ctx context.Context) ([]UserTemplate, error)
	GetSystemStats(ctx context.Context) (*SystemStats, error)
}
