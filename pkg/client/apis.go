package client

import (
	"encoding/json"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/ergosense/ergosense/pkg/config"
	"github.com/ergosense/ergosense/pkg/display"
	"github.com/ergosense/ergosense/pkg/reading"
	"github.com/ergosense/ergosense/pkg/status"
	"github.com/ergosense/ergosense/pkg/telemetry"
)

// Dimension is one classified dimension as reported by the daemon.
type Dimension struct {
	Level  string        `json:"level"`
	Reason status.Reason `json:"reason"`
}

// Status is the snapshot of the last completed cycle.
type Status struct {
	Seq             uint64          `json:"seq"`
	Time            time.Time       `json:"time"`
	Reading         reading.Reading `json:"reading"`
	LightPercentage int             `json:"lightPercentage"`
	Dimensions      struct {
		Posture     Dimension `json:"posture"`
		Light       Dimension `json:"light"`
		Temperature Dimension `json:"temperature"`
		Humidity    Dimension `json:"humidity"`
	} `json:"dimensions"`
	Overall     string           `json:"overall"`
	ErrorPolicy string           `json:"errorPolicy"`
	Light       string           `json:"light"`
	Alarm       bool             `json:"alarm"`
	Display     display.Lines    `json:"display"`
	Record      telemetry.Record `json:"record"`
	Session     struct {
		ID    string    `json:"id"`
		Start time.Time `json:"start"`
	} `json:"session"`
	Connected bool   `json:"connected"`
	Published bool   `json:"published"`
	Dropped   uint64 `json:"dropped"`
	LastError string `json:"lastError,omitempty"`
}

// Cycles lists the recent cycle start times.
type Cycles struct {
	Interval   string   `json:"interval"`
	Records    []string `json:"records"`
	Continuous int      `json:"continuous"`
	Last       string   `json:"last,omitempty"`
}

func (c *Client) GetStatus() (*Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}
	return decodeStatus(ret)
}

// RunCycle asks the daemon to run one cycle now and returns its snapshot.
func (c *Client) RunCycle() (*Status, error) {
	ret, err := c.Post("/cycle", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run cycle")
	}
	return decodeStatus(ret)
}

func decodeStatus(ret string) (*Status, error) {
	var s Status
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &s, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) SetErrorPolicy(p status.ErrorPolicy) (string, error) {
	payload, err := json.Marshal(string(p))
	if err != nil {
		return "", err
	}
	ret, err := c.Put("/error-policy", string(payload))
	if err != nil {
		return "", err
	}
	return unquote(ret), nil
}

func (c *Client) SetAlarm(enabled bool) (string, error) {
	ret, err := c.Put("/alarm", strconv.FormatBool(enabled))
	if err != nil {
		return "", err
	}
	return unquote(ret), nil
}

func (c *Client) GetCycles() (*Cycles, error) {
	ret, err := c.Get("/cycles")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get cycles")
	}

	var cycles Cycles
	if err := json.Unmarshal([]byte(ret), &cycles); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal cycles")
	}
	return &cycles, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret), nil
}

// unquote strips the quotes of a JSON string response. Anything else is
// returned as is.
func unquote(s string) string {
	var v string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
