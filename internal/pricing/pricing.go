package pricing

import "textback/internal/config"

type Plan string

const (
	PlanBasic Plan = "basic"
	PlanPro   Plan = "pro"
)

// Features are the account's enabled billing flags.
type Features struct {
	FollowUp      bool
	RepeatCaller  bool
	TwoWay        bool
	VIPPriority   bool
	Transcription bool
}

// CallContext carries the per-call facts that gate surcharges.
type CallContext struct {
	VIPCaller    bool
	PriorHistory bool
	HasVoicemail bool
}

// Itemized is the cost breakdown for one missed call, in integer cents.
// A zero component means the surcharge did not apply.
type Itemized struct {
	BaseCents          int64
	FollowUpCents      int64
	RepeatCallerCents  int64
	TwoWayCents        int64
	PriorityCents      int64
	TranscriptionCents int64
}

func (i Itemized) TotalCents() int64 {
	return i.BaseCents + i.FollowUpCents + i.RepeatCallerCents +
		i.TwoWayCents + i.PriorityCents + i.TranscriptionCents
}

type Calculator struct {
	cfg config.Pricing
}

func NewCalculator(cfg config.Pricing) Calculator {
	return Calculator{cfg: cfg}
}

// Compute prices one call. Pure: no I/O, no state, identical inputs give
// identical breakdowns.
func (c Calculator) Compute(plan Plan, features Features, call CallContext) Itemized {
	cost := Itemized{BaseCents: c.cfg.BasicBaseCents}
	if plan == PlanPro {
		cost.BaseCents = c.cfg.ProBaseCents
	}
	if features.FollowUp {
		cost.FollowUpCents = c.cfg.FollowUpCents
	}
	if features.RepeatCaller && call.PriorHistory {
		cost.RepeatCallerCents = c.cfg.RepeatCallerCents
	}
	if features.TwoWay {
		cost.TwoWayCents = c.cfg.TwoWayCents
	}
	if features.VIPPriority {
		if call.VIPCaller {
			cost.PriorityCents = c.cfg.VIPPriorityCents
		} else {
			cost.PriorityCents = c.cfg.StandardPriorityCents
		}
	}
	if features.Transcription && call.HasVoicemail {
		cost.TranscriptionCents = c.cfg.TranscriptionCents
	}
	return cost
}
