package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/mattjperez/micro-rdk/internal/appclient"
	"github.com/mattjperez/micro-rdk/internal/buffer"
	"github.com/mattjperez/micro-rdk/internal/collector"
	"github.com/mattjperez/micro-rdk/internal/config"
	"github.com/mattjperez/micro-rdk/internal/drivers/builtin"
	"github.com/mattjperez/micro-rdk/internal/health"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/metrics"
	"github.com/mattjperez/micro-rdk/internal/monitor"
	"github.com/mattjperez/micro-rdk/internal/registry"
	"github.com/mattjperez/micro-rdk/internal/robot"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
	"github.com/mattjperez/micro-rdk/internal/sender"
	"github.com/mattjperez/micro-rdk/internal/storage"
	"github.com/mattjperez/micro-rdk/internal/system"
)

// bufferHighWater is the pending envelope count above which the buffer
// reports degraded.
const bufferHighWater = 1000

var errRestartRequested = errors.New("restart requested")

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log data instead of sending")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting micro-rdk agent",
		slog.String("env", cfg.Env),
		slog.String("robot_id", cfg.Robot.ID),
		slog.Bool("dry_run", *dryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(log, cfg.Storage.Path)
	if err != nil {
		log.Error("failed to open storage", sl.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	client := appclient.NewFileClient(afero.NewOsFs(), cfg.ControlPlane.ConfigDir)

	robotCfg, err := loadRobotConfig(ctx, log, client, store, cfg.Monitor.FetchTimeout)
	if err != nil {
		log.Error("no robot configuration available", sl.Err(err))
		os.Exit(1)
	}

	reg := registry.New()
	if err := builtin.Register(reg); err != nil {
		log.Error("failed to register drivers", sl.Err(err))
		os.Exit(1)
	}

	rbt, err := robot.Build(log, reg, robotCfg)
	if err != nil {
		log.Error("failed to build robot", sl.Err(err))
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(promReg)

	dataSender, closeSender, err := newSender(log, cfg, *dryRun)
	if err != nil {
		log.Error("failed to create sender", sl.Err(err))
		os.Exit(1)
	}
	defer closeSender()

	var buf buffer.Buffer
	healthServer := health.NewServer(log, cfg.Health.Address, promReg)
	healthServer.Register("sender", health.SinkCheck(dataSender.Health))
	healthServer.Register("components", health.ComponentsCheck(rbt.Failures()))

	if cfg.Buffer.Enabled && !*dryRun {
		sqliteBuf, err := buffer.NewSQLiteBuffer(log, cfg.Buffer.Path)
		if err != nil {
			log.Error("failed to create buffer", sl.Err(err))
			os.Exit(1)
		}
		defer func() {
			if err := sqliteBuf.Close(); err != nil {
				log.Error("failed to close buffer", sl.Err(err))
			}
		}()
		buf = sqliteBuf
		healthServer.Register("buffer", health.BufferCheck(sqliteBuf.Count, bufferHighWater))
		log.Info("buffer enabled", slog.String("path", cfg.Buffer.Path))
	}

	events := system.NewEvents()
	defer events.Close()

	mon := monitor.New(robotCfg, store, events,
		monitor.WithLogger(log),
		monitor.WithPeriod(cfg.Monitor.Period),
		monitor.WithFetchTimeout(cfg.Monitor.FetchTimeout),
		monitor.WithMetrics(mt),
	)
	healthServer.Register("config_monitor", health.MonitorCheck(mon.LastSuccess, time.Now, 3*cfg.Monitor.Period+cfg.Monitor.FetchTimeout))

	if err := healthServer.Start(); err != nil {
		log.Error("failed to start health server", sl.Err(err))
		os.Exit(1)
	}

	manager := collector.NewManager(log, collector.ManagerConfig{
		RobotID:      cfg.Robot.ID,
		BufferMaxAge: cfg.Buffer.MaxAge,
	}, rbt.Collectors(), dataSender, buf, mt)

	runner := appclient.NewRunner(log, client, mon)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		manager.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case ev := <-events.C():
			log.Info("system event received", slog.String("event", ev.String()))
			return errRestartRequested
		}
	})

	err = g.Wait()
	manager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop health server", sl.Err(err))
	}

	if errors.Is(err, errRestartRequested) {
		log.Info("agent stopped for restart")
		return
	}
	log.Info("agent stopped")
}

// loadRobotConfig fetches the robot configuration from the control plane and
// stores it, falling back to the last stored copy when the fetch fails.
func loadRobotConfig(
	ctx context.Context,
	log *slog.Logger,
	client appclient.Client,
	store *storage.SQLiteStore,
	timeout time.Duration,
) (*robotconfig.RobotConfig, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, _, err := client.GetAppConfig(fetchCtx, "")
	if err == nil && resp.Config != nil {
		if err := store.StoreRobotConfiguration(ctx, resp.Config); err != nil {
			log.Warn("failed to store robot configuration", sl.Err(err))
		}
		return resp.Config, nil
	}
	if err == nil {
		err = errors.New("control plane returned no configuration")
	}
	log.Warn("using stored robot configuration", sl.Err(err))

	stored, serr := store.RobotConfiguration(ctx)
	if serr != nil {
		return nil, errors.Wrapf(serr, "fetch failed (%v)", err)
	}
	return stored, nil
}

func newSender(log *slog.Logger, cfg *config.Config, dryRun bool) (sender.Sender, func(), error) {
	noop := func() {}
	if dryRun {
		log.Info("dry-run mode: data will be logged instead of sent")
		return sender.NewLogSender(log), noop, nil
	}

	switch cfg.Sender.Kind {
	case config.SenderNATS:
		s, err := sender.NewNATSSender(log, &cfg.Sender.NATS, "micro-rdk-"+cfg.Robot.ID)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error("failed to close nats sender", sl.Err(err))
			}
		}, nil
	case config.SenderLog:
		return sender.NewLogSender(log), noop, nil
	default:
		return sender.NewHTTPSender(log, &cfg.Sender), noop, nil
	}
}
