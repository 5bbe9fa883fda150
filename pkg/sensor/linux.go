package sensor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ergosense/ergosense/pkg/reading"
)

// Ranger measures the echo round trip of an ultrasonic sensor.
type Ranger interface {
	Echo(ctx context.Context) (time.Duration, error)
}

// LinuxConfig describes where the Linux adapter finds its inputs.
type LinuxConfig struct {
	// IIODir is the DHT IIO device directory, e.g. /sys/bus/iio/devices/iio:device0.
	IIODir string
	// LightDir is the ADC IIO device directory. Defaults to IIODir.
	LightDir     string
	LightChannel int
	// LightMaxRaw is the full-scale ADC value, scaled onto 0..4095.
	LightMaxRaw int
}

// Linux reads distance through a Ranger and the environment values through
// the kernel IIO sysfs interface.
type Linux struct {
	ranger Ranger
	cfg    LinuxConfig
}

var _ Adapter = &Linux{}

func NewLinux(ranger Ranger, cfg LinuxConfig) *Linux {
	if cfg.LightDir == "" {
		cfg.LightDir = cfg.IIODir
	}
	if cfg.LightMaxRaw <= 0 {
		cfg.LightMaxRaw = reading.LightRawMax
	}
	return &Linux{ranger: ranger, cfg: cfg}
}

func (l *Linux) Read(ctx context.Context) (reading.Raw, error) {
	echo, err := l.ranger.Echo(ctx)
	if err != nil {
		return reading.Raw{}, pkgerrors.Wrapf(err, "failed to measure distance")
	}

	light, err := readIIOInt(filepath.Join(l.cfg.LightDir, "in_voltage"+strconv.Itoa(l.cfg.LightChannel)+"_raw"))
	if err != nil {
		return reading.Raw{}, pkgerrors.Wrapf(err, "failed to read light level")
	}

	// The DHT driver returns EIO on checksum errors and timeouts. Those
	// become NaN and are handled by the fallback.
	temp := readIIOMilli(filepath.Join(l.cfg.IIODir, "in_temp_input"))
	humidity := readIIOMilli(filepath.Join(l.cfg.IIODir, "in_humidityrelative_input"))

	return reading.Raw{
		DistanceCm:   reading.DistanceFromEcho(echo),
		LightRaw:     light * reading.LightRawMax / l.cfg.LightMaxRaw,
		TemperatureC: temp,
		HumidityPct:  humidity,
	}, nil
}

func (l *Linux) Close() error {
	if c, ok := l.ranger.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func readIIOInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "invalid value in %s", path)
	}
	return v, nil
}

func readIIOMilli(path string) float64 {
	v, err := readIIOInt(path)
	if err != nil {
		logrus.WithField("path", path).Tracef("iio read failed: %v", err)
		return math.NaN()
	}
	return float64(v) / 1000
}

// UltrasonicRanger drives an HC-SR04 style sensor on two GPIO lines.
type UltrasonicRanger struct {
	trig    gpio.PinIO
	echo    gpio.PinIO
	timeout time.Duration
}

// NewUltrasonicRanger looks up the trigger and echo pins by name. A zero
// timeout means one second, the classic pulse measurement limit.
func NewUltrasonicRanger(trigPin, echoPin string, timeout time.Duration) (*UltrasonicRanger, error) {
	if _, err := host.Init(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to initialize periph host drivers")
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	trig := gpioreg.ByName(trigPin)
	if trig == nil {
		return nil, pkgerrors.Errorf("no gpio pin found for trigger: %q", trigPin)
	}
	echo := gpioreg.ByName(echoPin)
	if echo == nil {
		return nil, pkgerrors.Errorf("no gpio pin found for echo: %q", echoPin)
	}
	if err := trig.Out(gpio.Low); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set trigger pin %s as output", trigPin)
	}
	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set echo pin %s as input", echoPin)
	}

	return &UltrasonicRanger{trig: trig, echo: echo, timeout: timeout}, nil
}

// Echo sends a 10µs trigger pulse and times the high phase of the echo
// line. A missing echo is not an error: it returns zero, which maps to the
// out-of-range distance.
func (u *UltrasonicRanger) Echo(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := u.trig.Out(gpio.Low); err != nil {
		return 0, err
	}
	time.Sleep(2 * time.Microsecond)
	if err := u.trig.Out(gpio.High); err != nil {
		return 0, err
	}
	time.Sleep(10 * time.Microsecond)
	if err := u.trig.Out(gpio.Low); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(u.timeout)
	for u.echo.Read() == gpio.Low {
		if !u.waitEdge(deadline) {
			return 0, nil
		}
	}
	start := time.Now()
	for u.echo.Read() == gpio.High {
		if !u.waitEdge(deadline) {
			return 0, nil
		}
	}
	return time.Since(start), nil
}

// waitEdge waits for the next echo edge until deadline. A negative timeout
// means "forever" to the pin drivers, so a passed deadline never reaches
// them.
func (u *UltrasonicRanger) waitEdge(deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	return u.echo.WaitForEdge(remaining)
}

func (u *UltrasonicRanger) Close() error {
	if err := u.echo.Halt(); err != nil {
		return err
	}
	return u.trig.Halt()
}
