package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// SetupCmd implements the 'setup' command.
type SetupCmd struct {
	Current  string `required:"" help:"Your current bedtime (HH:MM)"`
	Wake     string `required:"" help:"The wake time you want to reach (HH:MM)"`
	Duration int    `help:"Sleep duration in minutes (default 480)"`
}

func (s *SetupCmd) Run(g *Global, root *CLI) error {
	return root.transition(g, func(ctx context.Context) (adherence.DisplayState, error) {
		return root.client().Setup(ctx, adherence.Survey{
			CurrentBedtime:  s.Current,
			TargetWakeTime:  s.Wake,
			DurationMinutes: s.Duration,
		})
	})
}

// StatusCmd implements the 'status' command.
type StatusCmd struct{}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	return root.transition(g, func(ctx context.Context) (adherence.DisplayState, error) {
		return root.client().State(ctx)
	})
}

// ConfirmCmd implements the 'confirm' command.
type ConfirmCmd struct {
	Cycle string `help:"Cycle the confirmation belongs to (defaults to the current one)"`
}

func (c *ConfirmCmd) Run(g *Global, root *CLI) error {
	return root.transition(g, func(ctx context.Context) (adherence.DisplayState, error) {
		return root.client().Confirm(ctx, c.Cycle)
	})
}

// SkipCmd implements the 'skip' command.
type SkipCmd struct {
	Cycle string `help:"Cycle the skip belongs to (defaults to the current one)"`
}

func (s *SkipCmd) Run(g *Global, root *CLI) error {
	return root.transition(g, func(ctx context.Context) (adherence.DisplayState, error) {
		return root.client().Skip(ctx, s.Cycle)
	})
}

// ResumeCmd implements the 'resume' command.
type ResumeCmd struct{}

func (r *ResumeCmd) Run(g *Global, root *CLI) error {
	return root.transition(g, func(ctx context.Context) (adherence.DisplayState, error) {
		return root.client().Resume(ctx)
	})
}

// ExactCmd implements the 'exact' command.
type ExactCmd struct {
	Access string `arg:"" enum:"allow,deny" help:"allow or deny exact delivery"`
}

func (e *ExactCmd) Run(g *Global, root *CLI) error {
	return root.transition(g, func(ctx context.Context) (adherence.DisplayState, error) {
		return root.client().SetExactAllowed(ctx, e.Access == "allow")
	})
}

// transition runs one API call and prints the resulting state. A denied
// registration still committed the state, so it is printed before the error.
func (c *CLI) transition(g *Global, call func(ctx context.Context) (adherence.DisplayState, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	ds, err := call(ctx)
	if ce, ok := errors.AsClassified(err); ok && ce.IsCategory(errors.CategoryCycle) {
		if !c.JSON {
			_, _ = fmt.Fprintf(g.out(), "Nothing to do: %s.\n", ce.Message())
		}
		err = nil
	}
	if err != nil && !ds.Configured {
		return err
	}
	if perr := printState(g.out(), ds, c.JSON); perr != nil && err == nil {
		return perr
	}
	return err
}
