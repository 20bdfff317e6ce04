package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"sentinel/internal/appversion"
	"sentinel/internal/logging"
	"sentinel/pkg/client"
	"sentinel/pkg/config"
	"sentinel/pkg/journal"
	"sentinel/pkg/telemetry"
	"sentinel/pkg/watch"
)

// shutdownTimeout bounds the final telemetry flush.
const shutdownTimeout = 3 * time.Second

// run wires a session to the backend and shows it until ctx is done or the
// operator quits.
func run(ctx context.Context, cfg config.Config, o options, out io.Writer) (err error) {
	logger, closer, err := logging.OpenFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck // best-effort on exit

	provider, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "sentinel-dash",
		ServiceVersion: appversion.String(),
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := provider.Shutdown(sctx); serr != nil {
			logger.Warn("telemetry shutdown", "error", serr)
		}
	}()

	inst, err := telemetry.NewInstruments()
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	var recorders []watch.Recorder

	var printer *plainPrinter
	if o.plain {
		printer = newPlainPrinter(out)
		recorders = append(recorders, printer)
	}

	if path := cfg.JournalPath(); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer j.Close() //nolint:errcheck // best-effort on exit
		if _, err := j.StartSession(ctx, sessionID, cfg.BaseURL); err != nil {
			return err
		}
		recorders = append(recorders, j.Session(sessionID))
	}

	c := client.New(cfg.BaseURL)
	sess, err := watch.New(watch.Options{
		Fetcher:     c,
		Submitter:   c,
		Interval:    cfg.PollInterval.Std(),
		Policy:      cfg.Policy(),
		Recorders:   recorders,
		Instruments: inst,
		Logger:      logger,
		SessionID:   sessionID,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()
	go followConfig(ctx, o, sess, logger)

	if printer != nil {
		err = runPlain(ctx, sess.Updates(), printer)
	} else {
		err = runTUI(ctx, sess, cfg)
	}
	cancel()
	return errors.Join(err, <-runErr)
}

func runTUI(ctx context.Context, sess *watch.Session, cfg config.Config) error {
	m := newModel(ctx, sess, cfg.Request(), cfg.Operator.Phone)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}

// followConfig applies the reset policy of every reloaded config file.
func followConfig(ctx context.Context, o options, sess *watch.Session, logger *slog.Logger) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	reloads, err := config.Watch(ctx, path, logger)
	if err != nil {
		logger.Info("config reload disabled", "error", err)
		return
	}
	for cfg := range reloads {
		if err := applyFlags(&cfg, o); err != nil {
			logger.Warn("ignoring reloaded config", "error", err)
			continue
		}
		sess.SetPolicy(ctx, cfg.Policy())
		logger.Info("config reloaded", "reset_mode", cfg.Reset.Mode, "reset_delay", cfg.Reset.Delay.Std())
	}
}
