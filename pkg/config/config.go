package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/status"
)

// Pins names the GPIO lines used by the linux sensor source and the gpio
// indicator driver.
type Pins struct {
	Trig   string `json:"trig,omitempty"`
	Echo   string `json:"echo,omitempty"`
	Red    string `json:"red,omitempty"`
	Yellow string `json:"yellow,omitempty"`
	Green  string `json:"green,omitempty"`
	Buzzer string `json:"buzzer,omitempty"`
}

type Config interface {
	Broker() string
	ClientID() string
	DataTopic() string
	LEDTopic() string
	CommandTopic() string
	Interval() time.Duration
	ReconnectInterval() time.Duration
	MaxReconnectInterval() time.Duration
	ErrorPolicy() status.ErrorPolicy
	AlarmEnabled() bool
	AlarmFrequencyHz() int
	AlarmDuration() time.Duration
	SensorSource() string
	IndicatorDriver() string
	Pins() Pins
	LEDActiveLow() bool
	EchoTimeout() time.Duration
	IIODevice() string
	LightIIODevice() string
	LightChannel() int
	LightMaxRaw() int
	DisplayWidth() int
	KafkaBrokers() []string
	KafkaTopicPrefix() string
	AllowNonRootAccess() bool

	SetErrorPolicy(status.ErrorPolicy)
	SetAlarmEnabled(bool)
	SetAllowNonRootAccess(bool)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
