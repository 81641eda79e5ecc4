package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepaucksharma/pidctl/internal/actuator"
	"github.com/deepaucksharma/pidctl/internal/configschema"
	"github.com/deepaucksharma/pidctl/internal/configstore"
	"github.com/deepaucksharma/pidctl/internal/configwatch"
	"github.com/deepaucksharma/pidctl/internal/daemon"
	"github.com/deepaucksharma/pidctl/internal/timeseries"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pidctld",
		Short: "Discrete PID control daemon",
		Long:  "pidctld drives one or more discrete PID controllers from periodic sensor readings, arbitrating raise/lower actuators per controller.",
	}

	root.AddCommand(newRunCmd(), newValidateCmd(), newControllerCmd())
	return root
}

var (
	dbPath       string
	seedPath     string
	influxAddr   string
	influxToken  string
	influxOrg    string
	influxBucket string
	httpAddr     string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon: load controllers from the config store and start their tick loops",
		RunE:  runDaemon,
	}

	cmd.Flags().StringVar(&dbPath, "db", "pidctl.db", "path to the SQLite config store")
	cmd.Flags().StringVar(&seedPath, "seed", "", "optional YAML seed file to load into the config store before starting")
	cmd.Flags().StringVar(&influxAddr, "influx-addr", "http://localhost:8086", "InfluxDB server address")
	cmd.Flags().StringVar(&influxToken, "influx-token", "", "InfluxDB auth token")
	cmd.Flags().StringVar(&influxOrg, "influx-org", "pidctl", "InfluxDB organization")
	cmd.Flags().StringVar(&influxBucket, "influx-bucket", "pidctl", "InfluxDB bucket")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "address for the /metrics and control HTTP surface")

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer logger.Sync()

	store, err := configstore.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	if seedPath != "" {
		seed, err := configstore.LoadSeedFile(seedPath)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		if err := configstore.Apply(cmd.Context(), store, seed); err != nil {
			return fmt.Errorf("apply seed file: %w", err)
		}
		logger.Info("seed file applied", zap.String("path", seedPath))
	}

	ts := timeseries.NewInfluxStore(influxAddr, influxToken, influxOrg, influxBucket, logger)
	defer ts.Close()

	d := daemon.New(actuator.NewMemoryDriver(), ts, store, logger)
	if err := d.LoadAndStart(context.Background()); err != nil {
		return fmt.Errorf("start controllers: %w", err)
	}

	var watcher *configwatch.Watcher
	if seedPath != "" {
		watcher, err = configwatch.New(seedPath, 100*time.Millisecond, logger, func() {
			seed, err := configstore.LoadSeedFile(seedPath)
			if err != nil {
				logger.Error("seed reload: parse failed", zap.Error(err))
				return
			}
			if err := configstore.Apply(context.Background(), store, seed); err != nil {
				logger.Error("seed reload: apply failed", zap.Error(err))
				return
			}
			for _, id := range d.List() {
				if err := d.Reload(context.Background(), id); err != nil {
					logger.Warn("controller reload failed", zap.String("controller_id", id), zap.Error(err))
				}
			}
			logger.Info("seed file reloaded")
		})
		if err != nil {
			logger.Warn("seed file watch failed, continuing without hot-reload", zap.Error(err))
		}
	}
	if watcher != nil {
		defer watcher.Close()
	}

	srv := &http.Server{Addr: httpAddr, Handler: d.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()
	logger.Info("pidctld started", zap.String("http_addr", httpAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	d.Shutdown()

	return nil
}

func newValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a seed YAML file against the config schema without loading it",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The schema describes the document as parsed from YAML, so
			// validate the raw map rather than the typed seed structs.
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return fmt.Errorf("load seed file: %w", err)
			}
			if err := configschema.ValidateSeedDoc(k.Raw()); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "seed", "seed.yaml", "path to the seed YAML file")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

func newControllerCmd() *cobra.Command {
	var addr string
	var setpoint float64

	controllerCmd := &cobra.Command{
		Use:   "controller",
		Short: "Send a lifecycle RPC to a running daemon's HTTP control surface",
	}
	controllerCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "daemon HTTP address")

	for _, action := range []string{"hold", "pause", "resume", "stop", "reload"} {
		action := action
		controllerCmd.AddCommand(&cobra.Command{
			Use:   action + " <controller-id>",
			Short: "Invoke " + action + "() on a controller",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return postAction(addr, args[0], action, nil)
			},
		})
	}

	setSetpointCmd := &cobra.Command{
		Use:   "set-setpoint <controller-id>",
		Short: "Invoke set_setpoint(x) on a controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAction(addr, args[0], "set_setpoint", map[string]string{"value": fmt.Sprintf("%v", setpoint)})
		},
	}
	setSetpointCmd.Flags().Float64Var(&setpoint, "value", 0, "new setpoint")
	controllerCmd.AddCommand(setSetpointCmd)

	return controllerCmd
}

func postAction(addr, id, action string, query map[string]string) error {
	url := fmt.Sprintf("%s/controllers/%s/%s", addr, id, action)
	if v, ok := query["value"]; ok {
		url += "?value=" + v
	}
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: daemon returned %s", action, id, resp.Status)
	}
	fmt.Println("success")
	return nil
}
