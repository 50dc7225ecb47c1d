package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/textmode-dev/joint/internal/admin"
	"github.com/textmode-dev/joint/internal/advertise"
	"github.com/textmode-dev/joint/internal/config"
	"github.com/textmode-dev/joint/internal/errors"
	"github.com/textmode-dev/joint/pkg/joint"
	"github.com/textmode-dev/joint/pkg/snapshot"
)

// serveOptions holds the serve flags.
type serveOptions struct {
	configPath      string
	addr            string
	adminAddr       string
	pass            string
	quiet           bool
	persistInterval string
	advertise       bool
	logLevel        string
	logFormat       string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [file...]",
		Short: "Serve documents for collaborative editing",
		Long: `Start one session per file argument, plus the sessions listed in
joint.json, and serve them until interrupted.

Each session is reachable at ws://<addr>/<name>, where name is the
lowercased base name of the file. On SIGINT or SIGTERM every session
is saved and closed.

Examples:
  joint serve art.bin
  joint serve --pass=secret --addr=:9000 art.bin logo.bin
  joint serve --config=/etc/joint/joint.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to joint.json (default: nearest joint.json above the working directory)")
	f.StringVarP(&opts.addr, "addr", "a", "", "Address sessions listen on (default from joint.json, else :8000)")
	f.StringVar(&opts.adminAddr, "admin-addr", "", `Admin HTTP address, "off" to disable (default from joint.json, else 127.0.0.1:8001)`)
	f.StringVarP(&opts.pass, "pass", "p", "", "Shared secret for sessions started from arguments")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Silence logging for sessions started from arguments")
	f.StringVar(&opts.persistInterval, "persist-interval", "", "How often sessions save, e.g. 30s (default from joint.json, else 5m)")
	f.BoolVar(&opts.advertise, "advertise", false, "Announce sessions over mDNS")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")

	return cmd
}

// loadConfig reads the configuration and applies flag overrides and file
// arguments.
func loadConfig(cmd *cobra.Command, opts serveOptions, files []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
		if stderrors.Is(err, os.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if opts.addr != "" {
		cfg.Address = opts.addr
	}
	if flags.Changed("admin-addr") {
		cfg.AdminAddress = opts.adminAddr
		if opts.adminAddr == "off" {
			cfg.AdminAddress = ""
		}
	}
	if opts.persistInterval != "" {
		cfg.PersistInterval = opts.persistInterval
	}
	if flags.Changed("advertise") {
		cfg.Advertise = opts.advertise
	}

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, errors.New("J400").WithDetail(file).Wrap(err)
		}
		cfg.Sessions = append(cfg.Sessions, config.SessionConfig{
			File:  abs,
			Pass:  opts.pass,
			Quiet: opts.quiet,
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Sessions) == 0 {
		return nil, errors.New("J400").
			WithDetail("no sessions to serve").
			WithSuggestion("Pass one or more files, or list sessions in joint.json").
			WithExample("joint serve art.bin")
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions, files []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := loadConfig(cmd, opts, files)
	if err != nil {
		return err
	}
	interval, err := cfg.Interval()
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := snapshot.Open(ctx, cfg.SnapshotStore(), logger)
	if err != nil {
		return errors.FromError(err, "J300")
	}
	if store != nil {
		defer store.Close()
	}

	sessionCfg := joint.DefaultSessionConfig()
	sessionCfg.PersistInterval = interval

	regCfg := joint.DefaultRegistryConfig()
	regCfg.Address = cfg.Address
	regCfg.Session = sessionCfg
	regCfg.Snapshots = store
	regCfg.Metrics = joint.NewMetrics(joint.WithRegistry(promReg))
	regCfg.Logger = logger
	reg := joint.NewRegistry(regCfg)

	if err := startSessions(ctx, reg, cfg.StartOptions()); err != nil {
		reg.CloseAll(context.Background())
		return err
	}
	printBanner(cmd.OutOrStdout())
	printSessions(cmd.OutOrStdout(), reg)

	var adv *advertise.Advertiser
	if cfg.Advertise {
		adv = startAdvertising(reg, logger)
		if adv != nil {
			defer adv.Close()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AdminAddress != "" {
		srv := admin.New(reg, &admin.Config{
			Address:  cfg.AdminAddress,
			Gatherer: promReg,
			Logger:   logger,
		})
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				return errors.New("J202").WithDetail("admin " + cfg.AdminAddress).Wrap(err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "sessions", reg.Count())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return reg.CloseAll(shutdownCtx)
	})
	return g.Wait()
}

// startSessions starts every configured session, stopping at the first
// failure.
func startSessions(ctx context.Context, reg *joint.Registry, opts []joint.StartOptions) error {
	for _, o := range opts {
		_, err := reg.Start(ctx, o)
		switch {
		case err == nil:
		case stderrors.Is(err, joint.ErrPathInUse):
			return errors.New("J201").WithDetail(o.File).Wrap(err)
		case stderrors.Is(err, os.ErrNotExist):
			return errors.New("J200").WithDetail(o.File).Wrap(err).
				WithSuggestion("Check the file path, or configure a snapshot backend to restore from")
		default:
			var opErr *net.OpError
			if stderrors.As(err, &opErr) && opErr.Op == "listen" {
				return errors.New("J202").Wrap(err)
			}
			return errors.New("J200").WithDetail(o.File).Wrap(err)
		}
	}
	return nil
}

func printSessions(w io.Writer, reg *joint.Registry) {
	addr := reg.Addr()
	for _, path := range reg.Paths() {
		fmt.Fprintf(w, "  \033[32m✓\033[0m ws://%s%s\n", addr, path)
	}
	fmt.Fprintln(w)
}

// startAdvertising publishes the sessions over mDNS and keeps the records
// in step with the registry. Failure is logged, not fatal.
func startAdvertising(reg *joint.Registry, logger *slog.Logger) *advertise.Advertiser {
	tcp, ok := reg.Addr().(*net.TCPAddr)
	if !ok {
		return nil
	}
	adv := advertise.New(tcp.Port, logger)
	if err := adv.Start(reg.Paths()); err != nil {
		logger.Warn("mDNS advertisement disabled", "error", err)
		return nil
	}
	update := func(*joint.Session) { adv.Update(reg.Paths()) }
	reg.SetOnSessionStart(update)
	reg.SetOnSessionEnd(update)
	return adv
}
