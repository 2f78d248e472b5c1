package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"vendbot/internal/models"
)

// Response helpers shared by all handlers. Every endpoint answers 200 with
// the status/msg/obj envelope; transport-level codes are reserved for auth
// and dedup middleware.
func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func paginatedResponse(data interface{}, total int64, page, limit int) models.PaginatedResponse {
	return models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// parseBodyAction extracts the "actions" field from the request body.
// All API requests route through an "actions" field.
func parseBodyAction(c echo.Context) (string, map[string]interface{}, error) {
	body := make(map[string]interface{})
	if err := c.Bind(&body); err != nil {
		return "", nil, err
	}
	action, _ := body["actions"].(string)
	return action, body, nil
}

func getStringField(body map[string]interface{}, key string) string {
	if v, ok := body[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%.0f", f)
		}
	}
	return ""
}

func getIntField(body map[string]interface{}, key string, defaultVal int) int {
	if v, ok := body[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		case string:
			if i, err := strconv.Atoi(t); err == nil {
				return i
			}
		}
	}
	return defaultVal
}

func getInt64Field(body map[string]interface{}, key string, defaultVal int64) int64 {
	if v, ok := body[key]; ok {
		switch t := v.(type) {
		case float64:
			return int64(t)
		case int64:
			return t
		case string:
			if i, err := strconv.ParseInt(t, 10, 64); err == nil {
				return i
			}
		}
	}
	return defaultVal
}

// getDecimalField accepts amounts as JSON strings or numbers.
func getDecimalField(body map[string]interface{}, key string) (decimal.Decimal, bool) {
	v, ok := body[key]
	if !ok {
		return decimal.Zero, false
	}
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(t), true
	}
	return decimal.Zero, false
}
