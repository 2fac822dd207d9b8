package position

import "fmt"

// MinStopDistancePct is the stop distance, as a fraction of entry, below which
// a warning is raised.
const MinStopDistancePct = 0.005

// Validation is the outcome of checking a stop-loss/take-profit pair.
type Validation struct {
	Valid        bool
	Errors       []string
	Warnings     []string
	PositionSide Side
}

// ResolveSide decides which branch applies. A long position or a buy entry
// selects the long branch and is checked first.
func ResolveSide(pos *Position, side string) Side {
	if (pos != nil && pos.Side == SideLong) || side == "buy" {
		return SideLong
	}
	if (pos != nil && pos.Side == SideShort) || side == "sell" {
		return SideShort
	}
	return SideLong
}

// CheckStopLoss returns the error and warning for a stop-loss level, if any.
func CheckStopLoss(branch Side, entry, stopLoss float64) (errMsg, warning string) {
	if entry <= 0 {
		return fmt.Sprintf("Entry price must be positive (entry %v)", entry), ""
	}
	if branch == SideShort {
		if stopLoss <= entry {
			return fmt.Sprintf("Stop loss must be above entry (stop %v, entry %v)", stopLoss, entry), ""
		}
		if (stopLoss-entry)/entry < MinStopDistancePct {
			warning = fmt.Sprintf("Stop loss is within %.1f%% of entry (stop %v, entry %v)", MinStopDistancePct*100, stopLoss, entry)
		}
		return "", warning
	}
	if stopLoss >= entry {
		return fmt.Sprintf("Stop loss must be below entry (stop %v, entry %v)", stopLoss, entry), ""
	}
	if (entry-stopLoss)/entry < MinStopDistancePct {
		warning = fmt.Sprintf("Stop loss is within %.1f%% of entry (stop %v, entry %v)", MinStopDistancePct*100, stopLoss, entry)
	}
	return "", warning
}

// CheckTakeProfit returns the error for a take-profit level, if any.
func CheckTakeProfit(branch Side, entry, takeProfit float64) string {
	if branch == SideShort {
		if takeProfit >= entry {
			return fmt.Sprintf("Take profit must be below entry (take profit %v, entry %v)", takeProfit, entry)
		}
		return ""
	}
	if takeProfit <= entry {
		return fmt.Sprintf("Take profit must be above entry (take profit %v, entry %v)", takeProfit, entry)
	}
	return ""
}

// ValidateStopTake checks that stopLoss and takeProfit sit on the correct side
// of entry for the position. A nil pointer skips that level. A nil position is
// not an error: side alone decides the branch.
func ValidateStopTake(pos *Position, entry float64, stopLoss, takeProfit *float64, side string) Validation {
	v := Validation{PositionSide: ResolveSide(pos, side)}

	if stopLoss != nil {
		errMsg, warning := CheckStopLoss(v.PositionSide, entry, *stopLoss)
		if errMsg != "" {
			v.Errors = append(v.Errors, errMsg)
		}
		if warning != "" {
			v.Warnings = append(v.Warnings, warning)
		}
	}
	if takeProfit != nil {
		if errMsg := CheckTakeProfit(v.PositionSide, entry, *takeProfit); errMsg != "" {
			v.Errors = append(v.Errors, errMsg)
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}
