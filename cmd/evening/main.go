package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/app"
	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/capture"
	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/db"
	"github.com/jwulff/evening/internal/guard"
	"github.com/jwulff/evening/internal/logging"
	"github.com/jwulff/evening/internal/metrics"
	"github.com/jwulff/evening/internal/recorder"
	"github.com/jwulff/evening/internal/server"
	"github.com/jwulff/evening/internal/waveform"
)

var version = "0.1.0-dev"

const pruneInterval = 10 * time.Minute

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("evening", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", config.DefaultPath(), "Path to configuration file")
	showVersion := global.Bool("version", false, "Print version and exit")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	cmd := "tui"
	rest := global.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	switch cmd {
	case "tui":
		err = runTUI(cfg)
	case "record":
		err = runRecord(cfg, rest, stdout, stderr)
	case "serve":
		err = runServe(cfg, stdout)
	case "token":
		err = runToken(cfg, rest, stdout, stderr)
	case "revoke":
		err = runRevoke(cfg, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q (expected tui, record, serve, token or revoke)\n", cmd)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintln(stderr, err)
		return 1
	}
}

var errUsage = errors.New("usage")

func newController(cfg config.Config, logger *zap.Logger, opts ...recorder.Option) (*recorder.Controller, error) {
	device, err := capture.New(cfg.Capture, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]recorder.Option{
		recorder.WithInterval(cfg.Recorder.TickInterval()),
		recorder.WithLogger(logger),
	}, opts...)
	return recorder.NewController(device, opts...), nil
}

func runTUI(cfg config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctrl, err := newController(cfg, logger, recorder.WithOnRecorded(func(clip audio.Clip) {
		logger.Info("take recorded", zap.String("clip", clip.ID), zap.Duration("duration", clip.Duration))
	}))
	if err != nil {
		return err
	}
	// The quit key closes the controller itself; signals and errors end Run without it.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctrl.Close(ctx)
	}()

	m := app.New(ctrl, app.Options{
		RecordingsDir: cfg.RecordingsDir,
		Preview: waveform.Options{
			Player:    cfg.Preview.Player,
			BarWidth:  cfg.Preview.BarWidth,
			BarGap:    cfg.Preview.BarGap,
			Normalize: true,
			Logger:    logger,
		},
		PreviewHeight: cfg.Preview.Height,
		Logger:        logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	// Copies of the model share one preview set, including attaches still in flight.
	m.Close()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runRecord(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(stderr)
	duration := fs.Duration("duration", 5*time.Second, "How long to record")
	out := fs.String("out", "evening.wav", "Where to write the take")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *duration <= 0 {
		fmt.Fprintln(stderr, "-duration must be positive")
		return errUsage
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctrl, err := newController(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close(context.Background())
		return fmt.Errorf("start recording: %w", err)
	}
	fmt.Fprintf(stdout, "recording for %s...\n", *duration)

	select {
	case <-time.After(*duration):
	case <-ctx.Done():
	}

	// Stop with a fresh context so an interrupt still yields the take.
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = ctrl.Stop(stopCtx)
	snap := ctrl.Snapshot()
	ctrl.Close(stopCtx)
	if err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	if snap.Err != nil {
		return snap.Err
	}
	if snap.Clip == nil {
		return errors.New("recording ended without a clip")
	}
	if err := snap.Clip.WriteFile(*out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s  %s\n", snap.Time(), *out)
	return nil
}

func runServe(cfg config.Config, stdout io.Writer) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, stdout)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := db.Open(cfg.Auth.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	g, err := guard.New(cfg.Auth, guard.NewAuthenticator(cfg.Auth, store), m, logger)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, g, store, m, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pruneSessions(ctx, store, logger)

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func pruneSessions(ctx context.Context, store *db.Store, logger *zap.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneExpired(ctx)
			if err != nil {
				logger.Warn("prune sessions failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("pruned sessions", zap.Int64("count", n))
			}
		}
	}
}

func runToken(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("user", "", "User ID the session belongs to")
	ttl := fs.Duration("ttl", cfg.Auth.SessionTTL(), "Session lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		fmt.Fprintln(stderr, "-user is required")
		return errUsage
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	store, err := db.Open(cfg.Auth.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sess, err := store.CreateSession(ctx, *user, *ttl)
	if err != nil {
		return err
	}
	token, err := guard.NewAuthenticator(cfg.Auth, store).Issue(sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "session %s expires %s\n%s\n", sess.ID, sess.ExpiresAt.Format(time.RFC3339), token)
	return nil
}

func runRevoke(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("session", "", "Session ID to revoke")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		fmt.Fprintln(stderr, "-session is required")
		return errUsage
	}

	store, err := db.Open(cfg.Auth.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ok, err := store.RevokeSession(context.Background(), *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s not found or already revoked", *id)
	}
	fmt.Fprintf(stdout, "revoked %s\n", *id)
	return nil
}
