package daemon

import (
	"context"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/api"
)

// foreground is the machine as the API sees it. A user-driven resume or setup
// re-arms the heartbeat retry budget.
type foreground struct {
	api.Machine
	rearm func()
}

func (f foreground) Resume(ctx context.Context) (adherence.DisplayState, error) {
	ds, err := f.Machine.Resume(ctx)
	f.rearm()
	return ds, err
}

func (f foreground) Setup(ctx context.Context, s adherence.Survey) (adherence.DisplayState, error) {
	ds, err := f.Machine.Setup(ctx, s)
	f.rearm()
	return ds, err
}

// rearmRetries clears the retry backoff so the heartbeat tries again even after
// giving up.
func (d *Daemon) rearmRetries() {
	if t := d.retry.Load(); t != nil {
		t.Reset()
	}
}
