package main

import "go.uber.org/zap"

// queuePage is the minimal view of a browser session the queue-draining loop
// needs. BotSession implements it; tests drive the loop with a scripted fake.
type queuePage interface {
	CurrentState() PageState
	Refresh() error
	Sleep(base, jitter float64)
	SolveChallenge() bool
}

// drainQueue keeps re-checking the page until it leaves the queue/firewall
// states or the check ceiling is hit. The ceiling is a hard contract: when it
// is reached the loop performs exactly one fallback refresh and gives up,
// returning whatever state it last saw.
//
// Per state:
//   - queue: short random sleep and re-check.
//   - firewall: attempt the challenge; if the page still classifies as
//     firewall after a believed solve, back off for a long randomized delay.
//     Either way refresh before the next check.
//   - anything else: return it, the caller decides what it means.
func drainQueue(p queuePage, log *zap.Logger, maxChecks int) PageState {
	state := StateQueue

	for check := 0; check < maxChecks; check++ {
		state = p.CurrentState()

		switch state {
		case StateQueue:
			log.Info("holding in queue", zap.Int("check", check+1), zap.Int("ceiling", maxChecks))
			p.Sleep(0.5, 1.5)

		case StateFirewall:
			log.Warn("firewall challenge encountered")
			p.Sleep(0.5, 2.5)
			if p.SolveChallenge() {
				p.Sleep(3, 0)
				if p.CurrentState() == StateFirewall {
					log.Warn("still behind firewall after challenge, long backoff")
					p.Sleep(180, 10)
				}
			} else {
				log.Warn("challenge not resolved, continuing")
			}
			if err := p.Refresh(); err != nil {
				log.Warn("page refresh failed", zap.Error(err))
			}

		default:
			log.Info("queue drained", zap.Stringer("state", state))
			return state
		}
	}

	log.Error("queue check ceiling reached, attempting fallback refresh")
	if err := p.Refresh(); err != nil {
		log.Warn("fallback refresh failed", zap.Error(err))
	}
	return state
}
