package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/leadsync/internal/app"
	"github.com/matheus3301/leadsync/internal/config"
	"github.com/matheus3301/leadsync/internal/lock"
	"github.com/matheus3301/leadsync/internal/session"
	"github.com/matheus3301/leadsync/internal/tui"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	headless := flag.Bool("headless", false, "run without the terminal UI, logging to stderr")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.Resolve(session.ConfigPath(), sessionName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: session %q: %v\n", sessionName, err)
		os.Exit(1)
	}

	p := app.Params{
		SessionName: sessionName,
		Settings:    settings,
		Headless:    *headless,
	}

	if *headless {
		fx.New(app.Module(p)).Run()
		return
	}

	if err := runConsole(p); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runConsole(p app.Params) error {
	var console *tui.App
	fxApp := fx.New(
		fx.NopLogger,
		app.Module(p),
		tui.Module(p.SessionName),
		fx.Populate(&console),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			return fmt.Errorf("session %q is already open in another console (pid %d)", p.SessionName, held.PID)
		}
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			console.Stop()
		}
	}()

	runErr := console.Run()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
