package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/motodash/cluster/internal/api"
	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/dispatcher"
	"github.com/motodash/cluster/internal/display"
	"github.com/motodash/cluster/internal/influx"
	"github.com/motodash/cluster/internal/logging"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/recorder"
	"github.com/motodash/cluster/internal/storage"
	"github.com/motodash/cluster/internal/storage/factory"
	"github.com/motodash/cluster/internal/telemetry"
	"github.com/motodash/cluster/internal/units"
)

const recorderStatusFile = "recorder.status.json"

var errServerStopped = errors.New("api server stopped unexpectedly")

func newServeCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cluster: simulators, API server and display window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap("motodash", os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()
			return serve(cmd.Context(), rt, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the display window")
	return cmd
}

// serve runs until a signal arrives or the window closes. The window, when
// shown, owns the calling goroutine.
func serve(parent context.Context, rt *runtime, headless bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := rt.Logger
	sm := rt.SlogManager

	store, err := factory.Open(config.GetStorageConfig(), sm)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}()

	simCfg := config.GetSimulatorConfig()
	seed := simCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := dashboard.New(dashboard.Config{
		TelemetryInterval: simCfg.TelemetryInterval,
		AnimationInterval: simCfg.AnimationInterval,
		WarningInterval:   simCfg.WarningInterval,
		StatusInterval:    simCfg.StatusInterval,
	}, dashboard.Dependencies{
		Logger: sm.Logger().With("component", "dashboard"),
		Rand:   rand.New(rand.NewSource(seed)),
	})
	engine.Simulator().Observe(func(r telemetry.Record) {
		rt.Session.SetDrivingMode(r.DrivingMode.String())
	})

	disp, err := dispatcher.New(logging.NewDispatcherLogger(sm.Zerolog("dispatcher"), rt.Session))
	if err != nil {
		return err
	}
	defer disp.Close()
	engine.RegisterActions(disp)

	var sink recorder.Sink
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		mgr := influx.NewManager(sm.Zerolog("influx"), influxCfg)
		if err := mgr.Connect(ctx); err != nil {
			log.Error("Failed to set up InfluxDB", "error", err)
		} else {
			sink = mgr
			defer func() {
				if err := mgr.Close(); err != nil {
					log.Error("Failed to close InfluxDB", "error", err)
				}
			}()
		}
	}

	if recCfg := config.GetRecorderConfig(); recCfg.Enabled {
		rec, err := recorder.NewService(recorder.Config{
			FlushInterval: recCfg.FlushInterval,
			BufferSize:    recCfg.BufferSize,
		}, recorder.Dependencies{
			Simulator:  engine.Simulator(),
			Store:      store,
			Sink:       sink,
			LogManager: sm,
			Meter:      rt.OTelProvider.Meter("recorder"),
			StatusPath: filepath.Join(config.GetString("logsDir"), recorderStatusFile),
		})
		if err != nil {
			return err
		}
		if err := rec.Start(); err != nil {
			return err
		}
		defer func() {
			if err := rec.Stop(); err != nil {
				log.Error("Failed to flush telemetry history", "error", err)
			}
		}()
	}

	hub := api.NewHub(sm.Logger().With("component", "stream"))
	engine.Simulator().Observe(hub.Broadcast)

	serverCfg := config.GetServerConfig()
	srv, err := api.NewServer(serverCfg, api.Dependencies{
		Store:      store,
		Engine:     engine,
		Dispatcher: disp,
		Hub:        hub,
		Logger:     sm.Logger().With("component", "api"),
		Rand:       rand.New(rand.NewSource(seed + 1)),
	})
	if err != nil {
		return err
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("API server listening", "address", serverCfg.Address)
		serverErr <- srv.ListenAndServe()
	}()
	runCtx, stopWatch := watchServer(ctx, serverErr)

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down API server", "error", err)
		}
	}

	if err := engine.Start(); err != nil {
		_ = stopWatch()
		shutdown()
		return err
	}
	defer engine.Stop()

	log.Info("Cluster running", "session", rt.Session.ID, "headless", headless)

	dispCfg := config.GetDisplayConfig()
	if headless || !dispCfg.Enabled {
		<-runCtx.Done()
	} else {
		err = runWindow(runCtx, engine, disp, store, dispCfg, rt)
	}

	failure := stopWatch()
	shutdown()
	log.Info("Shutting down")
	if failure != nil {
		log.Error("API server stopped", "error", failure)
		return errors.Join(failure, err)
	}
	return err
}

// watchServer returns a context that is also cancelled when the API server
// stops with an error. stop ends the watch and returns that error, or nil when
// the server was still up.
func watchServer(parent context.Context, serverErr <-chan error) (ctx context.Context, stop func() error) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			if err == nil {
				err = errServerStopped
			}
			cancel(err)
		}
	}()
	return ctx, func() error {
		cancel(nil)
		if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
			return cause
		}
		return nil
	}
}

func runWindow(ctx context.Context, engine *dashboard.Engine, disp *dispatcher.Dispatcher, store storage.Store, cfg config.DisplayConfig, rt *runtime) error {
	app, err := display.New(display.Config{
		Width:     cfg.Width,
		Height:    cfg.Height,
		GaugeSize: cfg.GaugeSize,
		MaxSpeed:  cfg.MaxSpeed,
	}, display.Dependencies{
		Engine:     engine,
		Dispatcher: disp,
		Prefs:      storePrefs(store, cfg.UserID),
		Logger:     rt.SlogManager.Logger().With("component", "display"),
	})
	if err != nil {
		return err
	}

	quit := context.AfterFunc(ctx, app.Quit)
	defer quit()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// storePrefs reads the rider's unit preferences from the store.
func storePrefs(store storage.Store, userID string) display.PrefsFunc {
	return func() (units.Prefs, error) {
		s, err := storage.GetOrCreateSettings(store, userID, time.Now())
		if err != nil {
			return units.DefaultPrefs(), err
		}
		return prefsFromSettings(s), nil
	}
}

func prefsFromSettings(s *model.Settings) units.Prefs {
	return units.Prefs{
		SpeedUnit:       s.SpeedUnit,
		DistanceUnit:    s.DistanceUnit,
		TemperatureUnit: s.TemperatureUnit,
	}
}
