package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vendbot/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

var evalNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		coupon       *models.Coupon
		code         string
		amount       string
		wantVerdict  Verdict
		wantDiscount string
	}{
		{
			name:        "unknown code",
			coupon:      nil,
			code:        "NOPE",
			amount:      "1000",
			wantVerdict: VerdictInvalidCode,
		},
		{
			name: "inactive coupon",
			coupon: &models.Coupon{
				Code: "OFF10", Type: models.CouponPercent, Value: dec("10"), Active: false,
			},
			code:        "OFF10",
			amount:      "1000",
			wantVerdict: VerdictInactive,
		},
		{
			name: "expired window",
			coupon: &models.Coupon{
				Code: "OLD", Type: models.CouponPercent, Value: dec("10"), Active: true,
				EndAt: timePtr(evalNow.Add(-time.Hour)),
			},
			code:        "OLD",
			amount:      "1000",
			wantVerdict: VerdictOutOfWindow,
		},
		{
			name: "not started yet",
			coupon: &models.Coupon{
				Code: "SOON", Type: models.CouponPercent, Value: dec("10"), Active: true,
				StartAt: timePtr(evalNow.Add(time.Hour)),
			},
			code:        "SOON",
			amount:      "1000",
			wantVerdict: VerdictOutOfWindow,
		},
		{
			name: "below minimum order amount",
			coupon: &models.Coupon{
				Code: "BIG", Type: models.CouponFixed, Value: dec("5000"), Active: true,
				MinOrderAmount: decPtr("100000"),
			},
			code:        "BIG",
			amount:      "99999",
			wantVerdict: VerdictBelowMinimum,
		},
		{
			name: "percent capped",
			coupon: &models.Coupon{
				Code: "P20", Type: models.CouponPercent, Value: dec("20"), Active: true,
				Cap: decPtr("5000"),
			},
			code:         "P20",
			amount:       "1000000",
			wantVerdict:  VerdictOK,
			wantDiscount: "5000",
		},
		{
			name: "percent uncapped rounds half up",
			coupon: &models.Coupon{
				Code: "P15", Type: models.CouponPercent, Value: dec("15"), Active: true,
			},
			code:         "P15",
			amount:       "10.03",
			wantVerdict:  VerdictOK,
			wantDiscount: "1.50", // 1.5045 -> 1.50
		},
		{
			name: "percent rounding boundary",
			coupon: &models.Coupon{
				Code: "P10", Type: models.CouponPercent, Value: dec("10"), Active: true,
			},
			code:         "P10",
			amount:       "10.05",
			wantVerdict:  VerdictOK,
			wantDiscount: "1.01", // 1.005 rounds half-up to 1.01
		},
		{
			name: "fixed exact value",
			coupon: &models.Coupon{
				Code: "F10K", Type: models.CouponFixed, Value: dec("10000"), Active: true,
			},
			code:         "F10K",
			amount:       "500000",
			wantVerdict:  VerdictOK,
			wantDiscount: "10000",
		},
		{
			name: "zero cap kills fixed discount",
			coupon: &models.Coupon{
				Code: "CAP0", Type: models.CouponFixed, Value: dec("10000"), Active: true,
				Cap: decPtr("0"),
			},
			code:        "CAP0",
			amount:      "500000",
			wantVerdict: VerdictZeroEffect,
		},
		{
			name: "percent on tiny amount rounds to zero",
			coupon: &models.Coupon{
				Code: "P1", Type: models.CouponPercent, Value: dec("1"), Active: true,
			},
			code:        "P1",
			amount:      "0.10",
			wantVerdict: VerdictZeroEffect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.coupon != nil {
				if err := e.coupons.Create(tt.coupon); err != nil {
					t.Fatalf("create coupon: %v", err)
				}
			}

			discount, verdict, err := e.discounts.Evaluate(tt.code, 42, dec(tt.amount), evalNow)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if verdict != tt.wantVerdict {
				t.Fatalf("verdict = %q, want %q", verdict, tt.wantVerdict)
			}
			if tt.wantVerdict == VerdictOK && !discount.Equal(dec(tt.wantDiscount)) {
				t.Errorf("discount = %s, want %s", discount, tt.wantDiscount)
			}
		})
	}
}

func TestInactiveFlagSurvivesPersistence(t *testing.T) {
	e := newEnv(t)
	coupon := &models.Coupon{
		Code: "OFF", Type: models.CouponFixed, Value: dec("100"), Active: false,
	}
	if err := e.coupons.Create(coupon); err != nil {
		t.Fatal(err)
	}

	stored, err := e.coupons.FindByCode("OFF")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if stored.Active {
		t.Fatal("coupon stored as active, want inactive")
	}

	_, verdict, err := e.discounts.Evaluate("OFF", 42, dec("1000"), evalNow)
	if err != nil {
		t.Fatal(err)
	}
	if verdict != VerdictInactive {
		t.Errorf("verdict = %q, want %q", verdict, VerdictInactive)
	}
}

func TestGlobalCap(t *testing.T) {
	e := newEnv(t)
	coupon := &models.Coupon{
		Code: "LIM2", Type: models.CouponFixed, Value: dec("100"), Active: true,
		MaxUses: intPtr(2),
	}
	if err := e.coupons.Create(coupon); err != nil {
		t.Fatal(err)
	}

	for i := int64(1); i <= 2; i++ {
		if _, verdict, err := e.discounts.Redeem("LIM2", i, "", dec("1000"), evalNow); err != nil || verdict != VerdictOK {
			t.Fatalf("redeem #%d: verdict=%q err=%v", i, verdict, err)
		}
	}

	_, verdict, err := e.discounts.Evaluate("LIM2", 3, dec("1000"), evalNow)
	if err != nil {
		t.Fatal(err)
	}
	if verdict != VerdictGlobalCapReached {
		t.Errorf("verdict = %q, want %q", verdict, VerdictGlobalCapReached)
	}
}

func TestPerUserCap(t *testing.T) {
	e := newEnv(t)
	coupon := &models.Coupon{
		Code: "ONCE", Type: models.CouponFixed, Value: dec("100"), Active: true,
		MaxUsesPerUser: intPtr(1),
	}
	if err := e.coupons.Create(coupon); err != nil {
		t.Fatal(err)
	}

	if _, verdict, err := e.discounts.Redeem("ONCE", 7, "", dec("1000"), evalNow); err != nil || verdict != VerdictOK {
		t.Fatalf("first redeem: verdict=%q err=%v", verdict, err)
	}

	_, verdict, err := e.discounts.Evaluate("ONCE", 7, dec("1000"), evalNow)
	if err != nil {
		t.Fatal(err)
	}
	if verdict != VerdictPerUserCapReached {
		t.Errorf("same account verdict = %q, want %q", verdict, VerdictPerUserCapReached)
	}

	// Another account is unaffected.
	_, verdict, err = e.discounts.Evaluate("ONCE", 8, dec("1000"), evalNow)
	if err != nil {
		t.Fatal(err)
	}
	if verdict != VerdictOK {
		t.Errorf("other account verdict = %q, want %q", verdict, VerdictOK)
	}
}

func TestReverseRedemptionIsIdempotent(t *testing.T) {
	e := newEnv(t)
	coupon := &models.Coupon{
		Code: "REV", Type: models.CouponFixed, Value: dec("100"), Active: true,
		MaxUsesPerUser: intPtr(1),
	}
	if err := e.coupons.Create(coupon); err != nil {
		t.Fatal(err)
	}

	if _, verdict, err := e.discounts.Redeem("REV", 9, "order-1", dec("1000"), evalNow); err != nil || verdict != VerdictOK {
		t.Fatalf("redeem: verdict=%q err=%v", verdict, err)
	}

	if err := e.discounts.ReverseByOrder("order-1"); err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	// Second reverse finds nothing applied; still no error.
	if err := e.discounts.ReverseByOrder("order-1"); err != nil {
		t.Fatalf("second reverse: %v", err)
	}

	// Reversal frees the per-user slot again.
	_, verdict, err := e.discounts.Evaluate("REV", 9, dec("1000"), evalNow)
	if err != nil {
		t.Fatal(err)
	}
	if verdict != VerdictOK {
		t.Errorf("verdict after reversal = %q, want %q", verdict, VerdictOK)
	}
}
