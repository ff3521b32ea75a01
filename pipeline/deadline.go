package pipeline

import "time"

// deadline is the batcher's flush timer. It is armed when a batch opens and
// stopped whenever the batch is flushed for any other reason, so a stale
// expiry can never flush the next batch early.
type deadline struct {
	timer  *time.Timer
	active bool
}

func newDeadline() *deadline {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &deadline{timer: t}
}

// arm starts the countdown for a freshly opened batch.
func (d *deadline) arm(after time.Duration) {
	d.stop()
	d.timer.Reset(after)
	d.active = true
}

// stop cancels a pending expiry and drains an expiry that already fired.
func (d *deadline) stop() {
	if !d.active {
		return
	}
	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
	d.active = false
}

// expired returns the channel that receives when the deadline passes. It is
// nil while the deadline is not armed, which disables its select case.
func (d *deadline) expired() <-chan time.Time {
	if !d.active {
		return nil
	}
	return d.timer.C
}

// fired records that the expiry was received.
func (d *deadline) fired() {
	d.active = false
}
