// Package policy decides what to do with a hedge whose legs filled
// unevenly: keep waiting, chase the market with a new price, or unwind
// the filled side before the market closes.
package policy

import (
	"fmt"
	"time"
)

// Action is the outcome of evaluating an at-risk hedge.
type Action string

const (
	ActionWait    Action = "wait"
	ActionReprice Action = "reprice"
	ActionDerisk  Action = "derisk"
)

// Decision carries the chosen action. Price is only meaningful for a
// reprice. Reason is a short human-readable trace for the logs.
type Decision struct {
	Action Action
	Price  int
	Reason string
}

// Config holds the policy knobs.
type Config struct {
	MaxTotalCost     int // combined entry ceiling, cents
	RepriceIncrement int // max chase per reprice in the mid horizon, cents
}

// Input is one at-risk hedge reduced to the numbers the policy needs.
type Input struct {
	HoursToClose   float64       // hours until market close; ignored when unknown
	CloseKnown     bool          // false when the ticker date could not be parsed
	SincePlaced    time.Duration // time since the resting leg's order was (re)placed
	FilledPrice    int           // entry price of the filled leg, cents
	PendingPrice   int           // current limit price of the resting leg, cents
	CandidatePrice int           // fresh maker price for the resting leg, cents
}

// waitFor returns the minimum dwell before acting on a partial fill.
// Far from close there is no hurry; near close patience runs out.
func waitFor(hoursToClose float64, known bool) time.Duration {
	if !known {
		return 60 * time.Minute
	}
	switch {
	case hoursToClose > 12:
		return 120 * time.Minute
	case hoursToClose > 6:
		return 60 * time.Minute
	case hoursToClose > 2:
		return 20 * time.Minute
	}
	return 0
}

// Evaluate applies the horizon rules to one at-risk hedge. It is pure:
// the same input always yields the same decision.
func Evaluate(in Input, cfg Config) Decision {
	if dwell := waitFor(in.HoursToClose, in.CloseKnown); in.SincePlaced < dwell {
		return Decision{Action: ActionWait,
			Reason: fmt.Sprintf("dwell %s not reached (%s since order)", dwell, in.SincePlaced.Truncate(time.Second))}
	}

	// Close at hand: no time left to chase, unwind unconditionally.
	if in.CloseKnown && in.HoursToClose < 2 {
		return Decision{Action: ActionDerisk,
			Reason: fmt.Sprintf("%.1fh to close", in.HoursToClose)}
	}

	// Mid horizon: chase only a small move, otherwise give up.
	if in.CloseKnown && in.HoursToClose < 6 {
		if in.CandidatePrice <= in.PendingPrice+cfg.RepriceIncrement {
			return Decision{Action: ActionReprice, Price: in.CandidatePrice,
				Reason: fmt.Sprintf("mid horizon, price %d within increment", in.CandidatePrice)}
		}
		return Decision{Action: ActionDerisk,
			Reason: fmt.Sprintf("mid horizon, price %d moved past %d+%d", in.CandidatePrice, in.PendingPrice, cfg.RepriceIncrement)}
	}

	// Long horizon (or unknown close): compare the fresh maker price
	// against the resting order.
	diff := in.CandidatePrice - in.PendingPrice
	switch {
	case diff <= 0:
		return Decision{Action: ActionWait,
			Reason: fmt.Sprintf("resting price %d still at or above market %d", in.PendingPrice, in.CandidatePrice)}
	case diff == 1:
		return Decision{Action: ActionReprice, Price: in.CandidatePrice,
			Reason: "market one tick above resting order"}
	}
	if in.FilledPrice+in.CandidatePrice <= cfg.MaxTotalCost {
		return Decision{Action: ActionReprice, Price: in.CandidatePrice,
			Reason: fmt.Sprintf("chase to %d keeps total %d under ceiling", in.CandidatePrice, in.FilledPrice+in.CandidatePrice)}
	}
	return Decision{Action: ActionDerisk,
		Reason: fmt.Sprintf("chase to %d would break the %d ceiling", in.CandidatePrice, cfg.MaxTotalCost)}
}
