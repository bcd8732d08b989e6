package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/logging"
	intOtel "github.com/motodash/cluster/internal/otel"
)

// runtime owns the ambient services of one process: config, log sinks and
// telemetry providers.
type runtime struct {
	Session *logging.Session

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	logFile *os.File
	closers []io.Closer
}

// bootstrap loads config and sets up logging. The console sink writes to
// console, which is stderr for commands that print data on stdout.
func bootstrap(name string, console io.Writer) (*runtime, error) {
	rt := &runtime{
		Session:     logging.NewSession(uuid.NewString(), time.Now()),
		SlogManager: logging.NewSlogManager(),
	}

	// console only until the config says where the file goes
	rt.SlogManager.Setup(logging.Options{Level: levelFlag(), Console: console})
	rt.Logger = rt.SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		rt.Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		rt.Logger.Info("Loaded config", "path", viper.ConfigFileUsed())
	}

	logsDir := viper.GetString("logsDir")
	file, err := logging.OpenLogFile(logsDir, name, rt.Session.Started)
	if err != nil {
		rt.Logger.Error("Failed to create/open log file!", "error", err, "dir", logsDir)
	} else {
		rt.logFile = file
	}

	var gelfSink io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGelfWriter(gl.Address)
		if err != nil {
			rt.Logger.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			gelfSink = w
			rt.closers = append(rt.closers, w)
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var sink io.Writer
		if rt.logFile != nil {
			sink = rt.logFile
		}
		rt.OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      sink,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			rt.Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}
	if rt.OTelProvider == nil {
		rt.OTelProvider, _ = intOtel.New(intOtel.Config{})
	}

	opts := logging.Options{
		Level:    levelFlag(),
		Console:  console,
		Gelf:     gelfSink,
		Provider: rt.OTelProvider.LoggerProvider(),
		Session:  rt.Session,
	}
	if rt.logFile != nil {
		opts.File = rt.logFile
	}
	rt.SlogManager.Setup(opts)
	rt.Logger = rt.SlogManager.Logger()
	if rt.logFile != nil {
		rt.Logger.Info("Logging to file", "path", rt.logFile.Name())
	}
	return rt, nil
}

func levelFlag() string {
	if logLevel != "" {
		return logLevel
	}
	return viper.GetString("logLevel")
}

// Close flushes telemetry and releases every sink.
func (rt *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if failures := rt.SlogManager.SinkFailures(); len(failures) > 0 {
		rt.Logger.Warn("Some log records were not delivered", "failures", failures)
	}

	var errs []error
	if err := rt.SlogManager.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush logs: %w", err))
	}
	if rt.OTelProvider != nil {
		if err := rt.OTelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.logFile != nil {
		if err := rt.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
