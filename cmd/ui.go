package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/icco/urack/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the MIDI settings screen",
	Long: `Open the MIDI settings screen with the module's encoder and buttons mapped to the keyboard.

The arrow keys (or hjkl) turn the encoder, page up/down turn it five steps, enter
selects and esc goes back. Going back from the page selector quits.

While an output is being edited, moving a controller or the pitch wheel on the
output's channel maps the output to it.`,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closeLog()

	r, err := newRack(log)
	if err != nil {
		return err
	}
	r.start()
	defer r.close()

	m := tui.New(r.store, r.gate, r.sampler, r.proc, r.router, r.log)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running program: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		p.Quit()
		return nil
	})
	return g.Wait()
}
