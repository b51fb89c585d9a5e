package tokendistributor

import (
	"time"

	"github.com/pkg/errors"
)

// Redemption is the outcome of a RedeemTokens call evaluated at a point in
// time.
type Redemption struct {
	// Periods is the number of newly redeemed periods.
	Periods uint64

	// Tokens is the quantity transferred to the receiving token account,
	// including any remainder swept by the final redemption.
	Tokens uint64

	// Final is set when the redemption completes the lockup.
	Final bool

	// NextUnlock is the unix time the next period unlocks, or zero once every
	// period has unlocked.
	NextUnlock uint64
}

// EstimateRedemption computes what RedeemTokens would transfer at now using
// the same integer arithmetic as the program. The lockup token account is
// assumed to still hold its original balance minus prior redemptions.
func EstimateRedemption(schedule *LockupScheduleState, lockup *LockupState, now time.Time) (*Redemption, error) {
	if schedule.NumberPeriods == 0 || schedule.PeriodDuration == 0 {
		return nil, errors.New("schedule has no periods")
	}
	if lockup.PeriodsRedeemed > schedule.NumberPeriods {
		return nil, errors.Errorf("lockup redeemed %d of %d periods", lockup.PeriodsRedeemed, schedule.NumberPeriods)
	}

	var ts uint64
	if unix := now.Unix(); unix > 0 {
		ts = uint64(unix)
	}

	maxPeriods := schedule.NumberPeriods - lockup.PeriodsRedeemed

	var elapsedPeriods, periods uint64
	if ts > schedule.StartTimestamp {
		elapsedPeriods = (ts - schedule.StartTimestamp) / schedule.PeriodDuration
		if elapsedPeriods > lockup.PeriodsRedeemed {
			periods = min(maxPeriods, elapsedPeriods-lockup.PeriodsRedeemed)
		}
	}

	tokensPerPeriod := lockup.TokenQuantity / schedule.NumberPeriods

	r := &Redemption{
		Periods: periods,
		Tokens:  periods * tokensPerPeriod,
	}

	if lockup.PeriodsRedeemed < schedule.NumberPeriods && lockup.PeriodsRedeemed+periods == schedule.NumberPeriods {
		r.Final = true
		r.Tokens = lockup.TokenQuantity - lockup.PeriodsRedeemed*tokensPerPeriod
	}

	if elapsedPeriods < schedule.NumberPeriods {
		r.NextUnlock = schedule.StartTimestamp + (elapsedPeriods+1)*schedule.PeriodDuration
	}

	return r, nil
}
