package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/config"
	"github.com/ergosense/ergosense/pkg/display"
	"github.com/ergosense/ergosense/pkg/events"
	"github.com/ergosense/ergosense/pkg/indicator"
	"github.com/ergosense/ergosense/pkg/sensor"
	"github.com/ergosense/ergosense/pkg/transport"
	"github.com/ergosense/ergosense/pkg/version"
)

var (
	conf    config.Config
	runner  *Runner
	sseHub  *events.EventHub
	metrics *Metrics
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.GET("/config", getConfig)
	router.PUT("/error-policy", setErrorPolicy)
	router.PUT("/alarm", setAlarm)
	router.POST("/cycle", runCycle)
	router.GET("/cycles", getCycles)
	router.GET("/events", getEvents)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/version", getVersion)

	return router
}

func newSensor(c config.Config) (sensor.Adapter, error) {
	switch c.SensorSource() {
	case config.SensorSimulated:
		return sensor.NewSimulated(time.Now().UnixNano()), nil
	case config.SensorLinux:
		pins := c.Pins()
		ranger, err := sensor.NewUltrasonicRanger(pins.Trig, pins.Echo, c.EchoTimeout())
		if err != nil {
			return nil, err
		}
		return sensor.NewLinux(ranger, sensor.LinuxConfig{
			IIODir:       c.IIODevice(),
			LightDir:     c.LightIIODevice(),
			LightChannel: c.LightChannel(),
			LightMaxRaw:  c.LightMaxRaw(),
		}), nil
	default:
		return nil, pkgerrors.Errorf("unknown sensor source %q", c.SensorSource())
	}
}

func newIndicatorDriver(c config.Config) (indicator.Driver, error) {
	switch c.IndicatorDriver() {
	case config.IndicatorLog:
		return indicator.NewLogDriver(), nil
	case config.IndicatorGPIO:
		pins := c.Pins()
		return indicator.NewGPIODriver(indicator.GPIOPins{
			Red:    pins.Red,
			Yellow: pins.Yellow,
			Green:  pins.Green,
			Buzzer: pins.Buzzer,
		}, c.LEDActiveLow())
	default:
		return nil, pkgerrors.Errorf("unknown indicator driver %q", c.IndicatorDriver())
	}
}

func newPublisher(c config.Config) (transport.Publisher, <-chan transport.Command) {
	m := transport.NewMQTT(transport.MQTTConfig{
		Broker:               c.Broker(),
		ClientID:             c.ClientID(),
		CommandTopic:         c.CommandTopic(),
		ReconnectInterval:    c.ReconnectInterval(),
		MaxReconnectInterval: c.MaxReconnectInterval(),
	})

	brokers := c.KafkaBrokers()
	if len(brokers) == 0 {
		return m, m.Commands()
	}
	kafka := transport.NewKafka(brokers, c.KafkaTopicPrefix(), c.ClientID())
	return transport.NewMirror(m, kafka, c.DataTopic()), m.Commands()
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	sseHub = events.NewEventHub()
	metrics = NewMetrics()
	router := setupRoutes()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	screen := display.NewScreen(conf.DisplayWidth())
	_ = screen.Show(display.Splash)
	logrus.WithFields(logrus.Fields{
		"line1": display.Splash[0],
		"line2": display.Splash[1],
	}).Info("starting")

	src, err := newSensor(conf)
	if err != nil {
		logrus.Fatalf("failed to set up sensors: %v", err)
	}

	driver, err := newIndicatorDriver(conf)
	if err != nil {
		logrus.Fatalf("failed to set up indicators: %v", err)
	}
	ctrl := indicator.NewController(driver, indicator.Tone{
		FrequencyHz: conf.AlarmFrequencyHz(),
		Duration:    conf.AlarmDuration(),
	}, func() bool { return !conf.AlarmEnabled() })
	if err := ctrl.Off(); err != nil {
		logrus.Errorf("failed to switch indicators off: %v", err)
	}

	pub, commands := newPublisher(conf)

	runner = NewRunner(RunnerOptions{
		Config:    conf,
		Sensor:    src,
		Indicator: ctrl,
		Display:   screen,
		Publisher: pub,
		Commands:  commands,
		Hub:       sseHub,
		Metrics:   metrics,
	})
	logrus.WithFields(logrus.Fields{
		"session": runner.Session().ID,
		"version": version.Version,
	}).Info("work session started")

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		logrus.Debugln("main loop starts")

		runLoop(loopCtx, runner)

		logrus.Debugln("main loop stopped")
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	stopLoop()
	<-loopDone

	// Event streams never end by themselves.
	sseHub.Close()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("switching indicators off")
	if err := ctrl.Off(); err != nil {
		logrus.Errorf("failed to switch indicators off before exiting: %v", err)
	}
	if err := driver.Close(); err != nil {
		logrus.Errorf("failed to release indicator outputs: %v", err)
	}
	if err := src.Close(); err != nil {
		logrus.Errorf("failed to release sensors: %v", err)
	}

	pub.Close()

	logrus.Info("exiting")
	return nil
}
