package consensus

import (
	"context"
	"time"

	"github.com/uhyunpark/hyperlicked/pkg/util"
)

// Pacemaker owns the per-view one-shot timer (§5 Timeouts) bounded by
// next_view_timeout from config, plus the once-only start_delay_seconds
// barrier used to align cluster start. Grounded on the teacher's
// channel-based Pacemaker, reworked from "wait for a prepare message" into
// "fire a Timeout vote when the view timer expires" since there is no
// reactive double-chain prepare message in this protocol — the timer
// itself drives TimerFire (§4.4).
type Pacemaker struct {
	NextViewTimeout time.Duration
	Clock           util.Clock

	curView View
	timer   <-chan time.Time
}

func NewPacemaker(nextViewTimeout time.Duration, clock util.Clock) *Pacemaker {
	return &Pacemaker{NextViewTimeout: nextViewTimeout, Clock: clock}
}

// StartDelay blocks for the configured start_delay_seconds, once, before
// the first view is entered, or returns early if ctx is cancelled.
func (p *Pacemaker) StartDelay(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Clock.After(time.Duration(seconds) * time.Second):
		return nil
	}
}

// Enter starts a fresh one-shot timer for v with duration
// next_view_timeout, replacing the previous view's timer channel. The old
// timer is not stopped: its channel is simply discarded, so it can no
// longer reach the event loop.
func (p *Pacemaker) Enter(v View) {
	p.curView = v
	p.timer = p.Clock.After(p.NextViewTimeout)
}

// Fired returns the channel that receives a value when the current view's
// timer expires; the state machine selects on this alongside inbound events.
func (p *Pacemaker) Fired() <-chan time.Time { return p.timer }

func (p *Pacemaker) CurrentView() View { return p.curView }
