package analytics

import (
	"strings"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/talkincode/supplychain/internal/domain"
)

// Decisions returned by the optimized decision model
const (
	DecisionEmergencyBuy = "EMERGENCY_BUY"
	DecisionBuyNow       = "BUY_NOW"
	DecisionWait         = "WAIT"
)

// Scenario keys of OptimizedDecisionResult.Scenarios
const (
	ScenarioEmergencyBuy = "emergency_buy"
	ScenarioBuyNow       = "buy_now"
	ScenarioWait3Days    = "wait_3_days"
)

// Optimized decision defaults applied when a field is omitted
const (
	DefaultLookbackDays       = 7
	DefaultHorizonDays        = 14
	DefaultAlphaObserved      = 0.6
	DefaultEmergencyDaysCover = 2.0
)

// BuyTimingRequest asks for the most profitable purchase date
type BuyTimingRequest struct {
	Item        string `json:"item"`
	StartDate   string `json:"start_date"`
	MonthsAhead int    `json:"months_ahead"`
}

// Normalize validates the request and rewrites StartDate as YYYY-MM-DD
func (r *BuyTimingRequest) Normalize() error {
	r.Item = strings.TrimSpace(r.Item)
	err := validation.ValidateStruct(r,
		validation.Field(&r.Item, validation.Required),
		validation.Field(&r.StartDate, validation.Required),
		validation.Field(&r.MonthsAhead, validation.Required, validation.Min(1), validation.Max(36)),
	)
	if err != nil {
		return domain.AsValidationError(err)
	}
	t, err := dateparse.ParseAny(strings.TrimSpace(r.StartDate))
	if err != nil {
		return domain.NewValidationError("start_date", "unrecognized date %q", r.StartDate)
	}
	r.StartDate = t.Format("2006-01-02")
	return nil
}

// BuyTimingResult is the best-buy-date answer
type BuyTimingResult struct {
	BestBuyDate    string  `json:"best_buy_date"`
	ExpectedProfit float64 `json:"expected_profit"`
}

// DailyDecisionRequest asks for today's buy/hold/sell action
type DailyDecisionRequest struct {
	DailyDemand int64 `json:"daily_demand"`
	Stock       int64 `json:"stock"`
	Holiday     bool  `json:"holiday"`
}

// Normalize validates the request
func (r *DailyDecisionRequest) Normalize() error {
	return domain.AsValidationError(validation.ValidateStruct(r,
		validation.Field(&r.DailyDemand, validation.Min(int64(0))),
		validation.Field(&r.Stock, validation.Min(int64(0))),
	))
}

// DailyDecisionResult is the daily action
type DailyDecisionResult struct {
	Action string `json:"action"`
}

// OptimizedDecisionRequest compares buying X units now against X+Y units in three days.
// The model parameters are pointers so that an explicit zero is sent as given.
type OptimizedDecisionRequest struct {
	Item               string   `json:"item"`
	Stock              float64  `json:"stock"`
	X                  float64  `json:"x"`
	DiscountX          float64  `json:"discount_x"`
	Y                  float64  `json:"y"`
	DiscountXPlusY     float64  `json:"discount_x_plus_y"`
	ClientID           string   `json:"client_id,omitempty"`
	LookbackDays       *int     `json:"lookback_days,omitempty"`
	HorizonDays        *int     `json:"horizon_days,omitempty"`
	AlphaObserved      *float64 `json:"alpha_observed,omitempty"`
	EmergencyDaysCover *float64 `json:"emergency_days_cover,omitempty"`
}

// Normalize fills defaults for omitted parameters and validates the request
func (r *OptimizedDecisionRequest) Normalize() error {
	r.Item = strings.TrimSpace(r.Item)
	if r.LookbackDays == nil {
		r.LookbackDays = intPtr(DefaultLookbackDays)
	}
	if r.HorizonDays == nil {
		r.HorizonDays = intPtr(DefaultHorizonDays)
	}
	if r.AlphaObserved == nil {
		r.AlphaObserved = floatPtr(DefaultAlphaObserved)
	}
	if r.EmergencyDaysCover == nil {
		r.EmergencyDaysCover = floatPtr(DefaultEmergencyDaysCover)
	}
	return domain.AsValidationError(validation.ValidateStruct(r,
		validation.Field(&r.Item, validation.Required),
		validation.Field(&r.Stock, validation.Min(0.0)),
		validation.Field(&r.X, validation.Min(0.0)),
		validation.Field(&r.Y, validation.Min(0.0)),
		validation.Field(&r.DiscountX, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&r.DiscountXPlusY, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&r.LookbackDays, validation.Required, validation.Min(1)),
		validation.Field(&r.HorizonDays, validation.Required, validation.Min(1)),
		validation.Field(&r.AlphaObserved, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&r.EmergencyDaysCover, validation.Min(0.0)),
	))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// Scenario is one simulated purchase plan
type Scenario struct {
	Profit          float64 `json:"profit"`
	Revenue         float64 `json:"revenue"`
	COGS            float64 `json:"cogs"`
	HoldingCost     float64 `json:"holding_cost"`
	LostUnits       float64 `json:"lost_units"`
	StockoutPenalty float64 `json:"stockout_penalty"`
	EndingStock     float64 `json:"ending_stock"`
}

// OptimizedDecisionResult is the optimized decision answer
type OptimizedDecisionResult struct {
	Item                  string              `json:"item"`
	AsOf                  string              `json:"as_of"`
	ObservedDailyVelocity float64             `json:"observed_daily_velocity"`
	Decision              string              `json:"decision"`
	Reason                string              `json:"reason,omitempty"`
	Scenarios             map[string]Scenario `json:"scenarios"`
}
