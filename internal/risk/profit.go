package risk

import "math"

// CheckProfitLevels evaluates plan against currentPrice and the remaining
// open quantity, per spec §4.4. Levels fire in order; each fires at most
// once per plan instance (idempotent across repeated calls once a level
// has exited).
func CheckProfitLevels(currentPrice float64, plan *ProfitPlan, remainingQty int64) ProfitCheckResult {
	entry := plan.EntryPrice.InexactFloat64()
	if entry <= 0 || remainingQty <= 0 {
		return ProfitCheckResult{}
	}
	gainPct := (currentPrice - entry) / entry

	for i := 0; i < 3; i++ {
		if plan.exited[i] {
			continue
		}
		if gainPct < plan.Levels[i] {
			break
		}
		qty := int64(math.Floor(float64(remainingQty) * plan.ExitFracs[i]))
		if i == 2 || qty > remainingQty {
			qty = remainingQty // last level and rounding both consume the remainder
		}
		if qty <= 0 {
			continue
		}
		plan.exited[i] = true
		return ProfitCheckResult{
			ShouldExit:        true,
			Level:             i + 1,
			QtyToExit:         qty,
			RemainingQtyAfter: remainingQty - qty,
		}
	}
	return ProfitCheckResult{}
}
