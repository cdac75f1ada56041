package risk

import "github.com/tradecore/bot/internal/domain"

// ComplianceResult is the outcome of a validation pass.
type ComplianceResult string

const (
	Allowed ComplianceResult = "allowed"
	Warning ComplianceResult = "warning"
	Blocked ComplianceResult = "blocked"
)

// ValidateRequest is the pre-trade input to Engine.Validate.
type ValidateRequest struct {
	AccountID          int64
	Symbol             string
	Side               domain.TradeSide
	Quantity           int64 // 0 if sizing should determine it
	Price              domain.Money
	Confidence         *float64 // non-nil requests position sizing (gate 5)
	WillCreateDayTrade bool
}

// ValidateResult is the pre-trade output; OK is true iff
// ComplianceResult != Blocked.
type ValidateResult struct {
	OK                bool
	ComplianceResult  ComplianceResult
	ComplianceMessage string
	PositionSizeShares *int64
	reasonCode        string // e.g. "pdt", "gfv", "insufficient_size" — used by callers/tests
}

func (r ValidateResult) ReasonCode() string { return r.reasonCode }

func blocked(reason, code string) ValidateResult {
	return ValidateResult{OK: false, ComplianceResult: Blocked, ComplianceMessage: reason, reasonCode: code}
}

func warn(reason, code string) ValidateResult {
	return ValidateResult{OK: true, ComplianceResult: Warning, ComplianceMessage: reason, reasonCode: code}
}

func allowed() ValidateResult {
	return ValidateResult{OK: true, ComplianceResult: Allowed}
}

// ProfitPlan defines the three profit-taking thresholds and their exit
// fractions, consumed by the scheduler's exit loop.
type ProfitPlan struct {
	EntryPrice domain.Money
	Levels     [3]float64 // e.g. 0.05, 0.10, 0.20
	ExitFracs  [3]float64 // e.g. 0.25, 0.50, 1.00 (remainder)

	// exited tracks which levels have already fired for this plan
	// instance so re-calling after a partial exit is idempotent
	// (spec §4.4: "re-calling after partial exit at level L returns
	// should_exit=false for L").
	exited [3]bool
}

// NewProfitPlan builds a plan from the three configured thresholds and
// fractions; the third exit fraction always consumes the remainder.
func NewProfitPlan(entry domain.Money, level1, level2, level3, frac1, frac2 float64) *ProfitPlan {
	return &ProfitPlan{
		EntryPrice: entry,
		Levels:     [3]float64{level1, level2, level3},
		ExitFracs:  [3]float64{frac1, frac2, 1.0},
	}
}

// ProfitCheckResult is the outcome of CheckProfitLevels.
type ProfitCheckResult struct {
	ShouldExit        bool
	Level             int // 1, 2 or 3
	QtyToExit         int64
	RemainingQtyAfter int64
}
