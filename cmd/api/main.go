package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/zenschedule/internal/adapter/actor"
	"github.com/berfenger/zenschedule/internal/adapter/store"
	"github.com/berfenger/zenschedule/internal/adapter/sunspec"
	"github.com/berfenger/zenschedule/internal/adapter/zendure"
	"github.com/berfenger/zenschedule/internal/config"
	"github.com/berfenger/zenschedule/internal/core/actor"
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/berfenger/zenschedule/internal/core/service"
	"github.com/berfenger/zenschedule/internal/metrics"
	"github.com/berfenger/zenschedule/internal/server"
	"github.com/berfenger/zenschedule/internal/util/actorutil"
	"github.com/berfenger/zenschedule/pkg/sunspec_meter"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	STOP_TIMEOUT = 20 * time.Second
)

func gracefulShutdown(apiServer *http.Server, rootContext *pactor.RootContext, master *pactor.PID, quit <-chan struct{}, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal or a console quit.
	select {
	case <-ctx.Done():
	case <-quit:
	}

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// Put the battery in standby before anything else goes down
	res, err := rootContext.RequestFuture(master, domain.AutomationStopRequest{}, STOP_TIMEOUT).Result()
	if err != nil {
		log.Printf("Automation did not stop cleanly: %v", err)
	} else if resp, ok := res.(domain.AutomationStopResponse); ok && resp.HasResponseError() {
		log.Printf("Automation stopped with error: %v", resp.GetResponseError())
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	slog.Info("zenschedule", "version", versioninfo.Short())
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	m := metrics.NewMetrics()

	// grid meter
	meter, err := meterReader(cfg, m, logger)
	if err != nil {
		panic(err)
	}

	// schedule store and source
	schedule := scheduleBackend(cfg, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, gatewayActorProvider(cfg, meter, schedule.Source, logger), mqttActorProvider(cfg, logger), m, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, schedule, m)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)
	quit := make(chan struct{}, 1)

	if cfg.Console {
		go runConsole(os.Stdin, os.Stdout, ctx, pid, quit)
	}

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, ctx, pid, quit, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	if closer, ok := meter.(io.Closer); ok {
		closer.Close()
	}
	as.Shutdown()
}

// runConsole reads operator commands line by line until quit or EOF.
func runConsole(in io.Reader, out io.Writer, rootContext *pactor.RootContext, master *pactor.PID, quit chan<- struct{}) {
	fmt.Fprintln(out, "console ready, type help for commands")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := domain.ParseOperatorCommand(line)
		if err != nil {
			fmt.Fprintf(out, "%v\n%s\n", err, domain.OperatorHelp)
			continue
		}
		if cmd.Kind == domain.CommandQuit {
			fmt.Fprintln(out, "stopping automation")
			quit <- struct{}{}
			return
		}
		res, err := rootContext.RequestFuture(master, domain.OperatorCommandRequest{Command: cmd}, server.ACTOR_REQUEST_TIMEOUT).Result()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if resp, ok := res.(domain.OperatorCommandResponse); ok {
			if resp.HasResponseError() {
				fmt.Fprintf(out, "error: %v\n", resp.GetResponseError())
			} else {
				fmt.Fprintln(out, resp.Message)
			}
		}
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => ZENSCHEDULE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ZENSCHEDULE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("zenschedule")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.Schedule.RefreshIntervalSecs == 0 {
		return nil, errors.New("config param schedule.refresh_interval_seconds should be > 0")
	}

	// check bounds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func meterReader(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (port.MeterReader, error) {
	switch cfg.Meter.Source {
	case config.METER_SOURCE_SUNSPEC:
		reader, err := sunspec_meter.NewIntSFMeterReader(cfg.Meter.SunSpec.Host,
			cfg.Meter.SunSpec.Port, uint8(cfg.Meter.SunSpec.MeterId), cfg.Device.Timeout(),
			cfg.Meter.SunSpec.IgnoreFronius, logger, &sunspec_meter.Instrument{RecordTime: m.ModbusInstrument()})
		if err != nil {
			return nil, err
		}
		return sunspec.NewMeterAdapter(reader, logger), nil
	default:
		return zendure.NewMeterClient(cfg.Meter.IP, cfg.Device.Timeout()), nil
	}
}

func scheduleBackend(cfg *config.Config, logger *zap.Logger) server.ScheduleBackend {
	if cfg.Schedule.ApiUrl != "" {
		api := zendure.NewScheduleAPIClient(cfg.Schedule.ApiUrl, cfg.Device.Timeout())
		return server.ScheduleBackend{
			Source: store.NewCachedSource(api, cfg.Schedule.RefreshInterval()),
		}
	}
	fileStore := store.NewFileScheduleStore(cfg.Schedule.File, logger)
	source := store.NewCachedStoreSource(fileStore, &service.DefaultScheduleResolver{}, cfg.Schedule.RefreshInterval())
	// edits are visible on the next schedule refresh
	fileStore.OnChange(source.Invalidate)
	return server.ScheduleBackend{
		Editor: fileStore,
		Source: source,
	}
}

func gatewayActorProvider(cfg *config.Config, meter port.MeterReader, schedule port.ScheduleSource, logger *zap.Logger) actor.GatewayActorProvider {
	device := zendure.NewDeviceClient(cfg.Device.IP, cfg.Device.SN, cfg.Device.Timeout(), logger)

	telemetry := &zendure.TelemetryReader{
		Meter:  meter,
		Device: device,
		Logger: logger,
	}
	if cfg.Store.MeterUrl != "" || cfg.Store.DeviceUrl != "" {
		telemetry.Store = zendure.NewReadingStore(cfg.Store.MeterUrl, cfg.Store.DeviceUrl, cfg.Device.Timeout())
	}

	ports := adactor.GatewayPorts{
		Telemetry: telemetry,
		Device:    device,
		Schedule:  schedule,
	}
	if cfg.Status.Url != "" {
		ports.Status = zendure.NewStatusClient(cfg.Status.Url, cfg.Device.Timeout())
	}

	return func() *adactor.GatewayActor {
		return adactor.NewGatewayActor(cfg, ports, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("timezone", "Europe/Amsterdam")
	viper.SetDefault("dry_run", false)
	viper.SetDefault("console", false)
	viper.SetDefault("http_log", false)
	viper.SetDefault("device.ip", "")
	viper.SetDefault("device.sn", "")
	viper.SetDefault("device.timeout_seconds", 5)
	viper.SetDefault("meter.source", config.METER_SOURCE_HTTP)
	viper.SetDefault("meter.ip", "")
	viper.SetDefault("meter.sunspec.host", "")
	viper.SetDefault("meter.sunspec.port", 502)
	viper.SetDefault("meter.sunspec.meter_id", 200)
	viper.SetDefault("meter.sunspec.ignore_fronius", false)
	viper.SetDefault("schedule.file", "schedule.json")
	viper.SetDefault("schedule.api_url", "")
	viper.SetDefault("schedule.refresh_interval_seconds", 300)
	viper.SetDefault("control.interval_millis", 15000)
	viper.SetDefault("control.adjustment_threshold", 10)
	viper.SetDefault("control.max_step", 200)
	viper.SetDefault("control.feed_min", -800)
	viper.SetDefault("control.feed_max", 800)
	viper.SetDefault("control.min_threshold", 20)
	viper.SetDefault("control.min_charge_level", 20)
	viper.SetDefault("control.max_charge_level", 90)
	viper.SetDefault("control.max_charge_power", 1200)
	viper.SetDefault("control.max_discharge_power", 800)
	viper.SetDefault("control.zero_threshold", 10)
	viper.SetDefault("control.standby_delay_millis", 2000)
	viper.SetDefault("status.url", "")
	viper.SetDefault("status.heartbeat_cron", "0 */5 * * * *")
	viper.SetDefault("store.meter_url", "")
	viper.SetDefault("store.device_url", "")
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "zenschedule")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
