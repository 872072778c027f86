package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/marcin-skalski/prwatch/internal/tui"
)

// RunCmd starts the dashboard in the foreground, or the headless poller.
type RunCmd struct {
	NoTUI bool `help:"Disable the dashboard and poll headless" name:"no-tui"`
}

func (r *RunCmd) Run(cli *CLI) error {
	// Auto-detect TUI capability
	enableTUI := !r.NoTUI && os.Getenv("PRWATCH_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	a, err := cli.newApp(enableTUI)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !enableTUI {
		a.logger.Info("prwatch starting (headless)", "config", cli.Config)
		if err := a.engine.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("engine: %w", err)
		}
		return nil
	}

	// TUI mode: engine in background, dashboard in foreground
	a.logger.Info("prwatch engine starting in background", "config", cli.Config)
	a.start(ctx)

	commands := make([]tui.CLICommand, 0, 2)
	for _, c := range a.commands() {
		commands = append(commands, tui.CLICommand{Label: c.Label, Template: c.Template})
	}
	m := tui.NewModel(tui.Deps{
		Engine:          a.engine,
		Diagnose:        a.diagnose,
		Launcher:        a.launcher,
		Commands:        commands,
		RefreshInterval: a.cfg.TUI.RefreshInterval,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Quit the dashboard on SIGTERM
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
