package commands

import (
	"context"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Days  int    `help:"Days of history to show" default:"14"`
	Cycle string `help:"Show a single cycle instead of a day range"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := context.WithTimeout(context.Background(), root.Timeout)
	defer cancel()

	resp, err := root.client().History(ctx, h.Days, h.Cycle)
	if err != nil {
		return err
	}
	return printHistory(g.out(), resp, root.JSON)
}
