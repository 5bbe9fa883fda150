package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/status"
	"github.com/ergosense/ergosense/pkg/utils/ptr"
)

const (
	SensorSimulated = "simulated"
	SensorLinux     = "linux"

	IndicatorLog  = "log"
	IndicatorGPIO = "gpio"
)

var (
	defaultFileConfig = &RawFileConfig{
		Broker:                      ptr.To("tcp://test.mosquitto.org:1883"),
		ClientID:                    ptr.To("ergosense"),
		DataTopic:                   ptr.To("ergosense/dados"),
		LEDTopic:                    ptr.To("ergosense/led"),
		CommandTopic:                ptr.To("ergosense/cmd"),
		IntervalSeconds:             ptr.To(2),
		ReconnectIntervalSeconds:    ptr.To(2),
		MaxReconnectIntervalSeconds: ptr.To(30),
		// ERROR statuses do not reach the aggregate unless opted in.
		ErrorPolicy:      ptr.To(string(status.ErrorIgnore)),
		AlarmEnabled:     ptr.To(true),
		AlarmFrequencyHz: ptr.To(1000),
		AlarmDurationMs:  ptr.To(300),
		SensorSource:     ptr.To(SensorSimulated),
		IndicatorDriver:  ptr.To(IndicatorLog),
		Pins: &Pins{
			Trig:   "GPIO5",
			Echo:   "GPIO6",
			Red:    "GPIO13",
			Yellow: "GPIO19",
			Green:  "GPIO26",
			Buzzer: "GPIO18",
		},
		LEDActiveLow:       ptr.To(true),
		EchoTimeoutMs:      ptr.To(1000),
		IIODevice:          ptr.To("/sys/bus/iio/devices/iio:device0"),
		LightIIODevice:     ptr.To(""),
		LightChannel:       ptr.To(0),
		LightMaxRaw:        ptr.To(4095),
		DisplayWidth:       ptr.To(16),
		KafkaBrokers:       []string{},
		KafkaTopicPrefix:   ptr.To(""),
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Broker                      *string  `json:"broker,omitempty"`
	ClientID                    *string  `json:"clientId,omitempty"`
	DataTopic                   *string  `json:"dataTopic,omitempty"`
	LEDTopic                    *string  `json:"ledTopic,omitempty"`
	CommandTopic                *string  `json:"commandTopic,omitempty"`
	IntervalSeconds             *int     `json:"intervalSeconds,omitempty"`
	ReconnectIntervalSeconds    *int     `json:"reconnectIntervalSeconds,omitempty"`
	MaxReconnectIntervalSeconds *int     `json:"maxReconnectIntervalSeconds,omitempty"`
	ErrorPolicy                 *string  `json:"errorPolicy,omitempty"`
	AlarmEnabled                *bool    `json:"alarmEnabled,omitempty"`
	AlarmFrequencyHz            *int     `json:"alarmFrequencyHz,omitempty"`
	AlarmDurationMs             *int     `json:"alarmDurationMs,omitempty"`
	SensorSource                *string  `json:"sensorSource,omitempty"`
	IndicatorDriver             *string  `json:"indicatorDriver,omitempty"`
	Pins                        *Pins    `json:"pins,omitempty"`
	LEDActiveLow                *bool    `json:"ledActiveLow,omitempty"`
	EchoTimeoutMs               *int     `json:"echoTimeoutMs,omitempty"`
	IIODevice                   *string  `json:"iioDevice,omitempty"`
	LightIIODevice              *string  `json:"lightIioDevice,omitempty"`
	LightChannel                *int     `json:"lightChannel,omitempty"`
	LightMaxRaw                 *int     `json:"lightMaxRaw,omitempty"`
	DisplayWidth                *int     `json:"displayWidth,omitempty"`
	KafkaBrokers                []string `json:"kafkaBrokers,omitempty"`
	KafkaTopicPrefix            *string  `json:"kafkaTopicPrefix,omitempty"`
	AllowNonRootAccess          *bool    `json:"allowNonRootAccess,omitempty"`
}

// NewRawFileConfigFromConfig resolves every value of c, defaults included.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	pins := c.Pins()
	rawConfig := &RawFileConfig{
		Broker:                      ptr.To(c.Broker()),
		ClientID:                    ptr.To(c.ClientID()),
		DataTopic:                   ptr.To(c.DataTopic()),
		LEDTopic:                    ptr.To(c.LEDTopic()),
		CommandTopic:                ptr.To(c.CommandTopic()),
		IntervalSeconds:             ptr.To(int(c.Interval() / time.Second)),
		ReconnectIntervalSeconds:    ptr.To(int(c.ReconnectInterval() / time.Second)),
		MaxReconnectIntervalSeconds: ptr.To(int(c.MaxReconnectInterval() / time.Second)),
		ErrorPolicy:                 ptr.To(string(c.ErrorPolicy())),
		AlarmEnabled:                ptr.To(c.AlarmEnabled()),
		AlarmFrequencyHz:            ptr.To(c.AlarmFrequencyHz()),
		AlarmDurationMs:             ptr.To(int(c.AlarmDuration() / time.Millisecond)),
		SensorSource:                ptr.To(c.SensorSource()),
		IndicatorDriver:             ptr.To(c.IndicatorDriver()),
		Pins:                        &pins,
		LEDActiveLow:                ptr.To(c.LEDActiveLow()),
		EchoTimeoutMs:               ptr.To(int(c.EchoTimeout() / time.Millisecond)),
		IIODevice:                   ptr.To(c.IIODevice()),
		LightIIODevice:              ptr.To(c.LightIIODevice()),
		LightChannel:                ptr.To(c.LightChannel()),
		LightMaxRaw:                 ptr.To(c.LightMaxRaw()),
		DisplayWidth:                ptr.To(c.DisplayWidth()),
		KafkaBrokers:                c.KafkaBrokers(),
		KafkaTopicPrefix:            ptr.To(c.KafkaTopicPrefix()),
		AllowNonRootAccess:          ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

func valueOr[T any](v, def *T) T {
	if v != nil {
		return *v
	}
	return *def
}

func (f *File) read() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) Broker() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().Broker, defaultFileConfig.Broker)
}

func (f *File) ClientID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().ClientID, defaultFileConfig.ClientID)
}

func (f *File) DataTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().DataTopic, defaultFileConfig.DataTopic)
}

func (f *File) LEDTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().LEDTopic, defaultFileConfig.LEDTopic)
}

func (f *File) CommandTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().CommandTopic, defaultFileConfig.CommandTopic)
}

func (f *File) Interval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := valueOr(f.read().IntervalSeconds, defaultFileConfig.IntervalSeconds)
	if s <= 0 {
		s = *defaultFileConfig.IntervalSeconds
	}
	return time.Duration(s) * time.Second
}

func (f *File) ReconnectInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := valueOr(f.read().ReconnectIntervalSeconds, defaultFileConfig.ReconnectIntervalSeconds)
	if s <= 0 {
		s = *defaultFileConfig.ReconnectIntervalSeconds
	}
	return time.Duration(s) * time.Second
}

func (f *File) MaxReconnectInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := valueOr(f.read().MaxReconnectIntervalSeconds, defaultFileConfig.MaxReconnectIntervalSeconds)
	if s <= 0 {
		s = *defaultFileConfig.MaxReconnectIntervalSeconds
	}
	return time.Duration(s) * time.Second
}

// ErrorPolicy falls back to the default if the file holds an unknown value.
func (f *File) ErrorPolicy() status.ErrorPolicy {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, err := status.ParseErrorPolicy(valueOr(f.read().ErrorPolicy, defaultFileConfig.ErrorPolicy))
	if err != nil {
		logrus.Warnf("%v, using %s", err, *defaultFileConfig.ErrorPolicy)
		return status.ErrorPolicy(*defaultFileConfig.ErrorPolicy)
	}
	return p
}

func (f *File) AlarmEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().AlarmEnabled, defaultFileConfig.AlarmEnabled)
}

func (f *File) AlarmFrequencyHz() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().AlarmFrequencyHz, defaultFileConfig.AlarmFrequencyHz)
}

func (f *File) AlarmDuration() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(valueOr(f.read().AlarmDurationMs, defaultFileConfig.AlarmDurationMs)) * time.Millisecond
}

func (f *File) SensorSource() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().SensorSource, defaultFileConfig.SensorSource)
}

func (f *File) IndicatorDriver() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().IndicatorDriver, defaultFileConfig.IndicatorDriver)
}

// Pins fills every unset pin from the defaults.
func (f *File) Pins() Pins {
	f.mu.RLock()
	defer f.mu.RUnlock()

	def := *defaultFileConfig.Pins
	p := f.read().Pins
	if p == nil {
		return def
	}
	merged := *p
	for _, pair := range []struct{ v, d *string }{
		{&merged.Trig, &def.Trig},
		{&merged.Echo, &def.Echo},
		{&merged.Red, &def.Red},
		{&merged.Yellow, &def.Yellow},
		{&merged.Green, &def.Green},
		{&merged.Buzzer, &def.Buzzer},
	} {
		if *pair.v == "" {
			*pair.v = *pair.d
		}
	}
	return merged
}

func (f *File) LEDActiveLow() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().LEDActiveLow, defaultFileConfig.LEDActiveLow)
}

func (f *File) EchoTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(valueOr(f.read().EchoTimeoutMs, defaultFileConfig.EchoTimeoutMs)) * time.Millisecond
}

func (f *File) IIODevice() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().IIODevice, defaultFileConfig.IIODevice)
}

// LightIIODevice is empty when the light ADC lives on IIODevice.
func (f *File) LightIIODevice() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().LightIIODevice, defaultFileConfig.LightIIODevice)
}

func (f *File) LightChannel() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().LightChannel, defaultFileConfig.LightChannel)
}

func (f *File) LightMaxRaw() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().LightMaxRaw, defaultFileConfig.LightMaxRaw)
}

func (f *File) DisplayWidth() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().DisplayWidth, defaultFileConfig.DisplayWidth)
}

func (f *File) KafkaBrokers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.read().KafkaBrokers) == 0 {
		return append([]string(nil), defaultFileConfig.KafkaBrokers...)
	}
	return append([]string(nil), f.c.KafkaBrokers...)
}

func (f *File) KafkaTopicPrefix() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().KafkaTopicPrefix, defaultFileConfig.KafkaTopicPrefix)
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().AllowNonRootAccess, defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetErrorPolicy(p status.ErrorPolicy) {
	if _, err := status.ParseErrorPolicy(string(p)); err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().ErrorPolicy = ptr.To(string(p))
}

func (f *File) SetAlarmEnabled(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().AlarmEnabled = &b
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().AllowNonRootAccess = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if conf.ErrorPolicy != nil {
		if _, err := status.ParseErrorPolicy(*conf.ErrorPolicy); err != nil {
			return pkgerrors.Wrapf(err, "invalid config in %s", f.filepath)
		}
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"broker":          f.Broker(),
		"clientId":        f.ClientID(),
		"dataTopic":       f.DataTopic(),
		"ledTopic":        f.LEDTopic(),
		"commandTopic":    f.CommandTopic(),
		"interval":        f.Interval().String(),
		"errorPolicy":     f.ErrorPolicy(),
		"alarmEnabled":    f.AlarmEnabled(),
		"sensorSource":    f.SensorSource(),
		"indicatorDriver": f.IndicatorDriver(),
		"kafkaBrokers":    f.KafkaBrokers(),
		"allowNonRoot":    f.AllowNonRootAccess(),
	}
}
