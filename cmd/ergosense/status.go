package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ergosense/ergosense/pkg/client"
	"github.com/ergosense/ergosense/pkg/config"
)

type statusData struct {
	status *client.Status
	config *config.RawFileConfig
	cycles *client.Cycles
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	s, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	// Older daemons do not serve /cycles.
	cycles, err := apiClient.GetCycles()
	if err != nil {
		logrus.WithError(err).Debug("failed to get cycles")
	}

	return &statusData{
		status: s,
		config: conf,
		cycles: cycles,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of ergosense",
		Long:    `Get the outcome of the last cycle, the sensor readings, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(data.status)
			}

			printStatus(cmd, data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the last cycle snapshot as JSON")

	return cmd
}

func printStatus(cmd *cobra.Command, data *statusData) {
	s := data.status
	conf := config.NewFileFromConfig(data.config, "")

	cmd.Println(bold("Overall status:"))
	cmd.Printf("  Status: %s (%s)\n", overallText(s.Overall), s.Record.Status)
	cmd.Printf("  Light: %s\n", bold("%s", s.Light))
	cmd.Printf("  Alarm: %s\n", bool2Text(s.Alarm))
	cmd.Printf("  Display:\n    | %-16s |\n    | %-16s |\n", s.Display[0], s.Display[1])
	if s.LastError != "" {
		cmd.Printf("  Last cycle error: %s\n", s.LastError)
	}

	cmd.Println()

	cmd.Println(bold("Readings:"))
	cmd.Printf("  Posture: %s %s (%s)\n", bold("%.1f cm", s.Reading.DistanceCm), levelText(s.Dimensions.Posture.Level), s.Dimensions.Posture.Reason)
	cmd.Printf("  Light: %s %s (%s)\n", bold("%d%%", s.LightPercentage), levelText(s.Dimensions.Light.Level), s.Dimensions.Light.Reason)
	cmd.Printf("  Temperature: %s %s (%s)\n", bold("%.1f °C", s.Reading.TemperatureC), levelText(s.Dimensions.Temperature.Level), s.Dimensions.Temperature.Reason)
	cmd.Printf("  Humidity: %s %s (%s)\n", bold("%.1f %%", s.Reading.HumidityPct), levelText(s.Dimensions.Humidity.Level), s.Dimensions.Humidity.Reason)
	if s.Reading.Fallback {
		cmd.Println("    Temperature/humidity sensor failed, fallback values are shown.")
	}
	cmd.Printf("  Last cycle: %s ago (#%d)\n", bold("%s", time.Since(s.Time).Round(time.Second)), s.Seq)
	cmd.Printf("  Session: %s, running for %s\n", s.Session.ID, bold("%s", time.Since(s.Session.Start).Round(time.Minute)))

	cmd.Println()

	cmd.Println(bold("Telemetry:"))
	cmd.Printf("  Broker: %s\n", bold("%s", conf.Broker()))
	cmd.Printf("  Connected: %s\n", bool2Text(s.Connected))
	cmd.Printf("  Last cycle published: %s\n", bool2Text(s.Published))
	cmd.Printf("  Dropped while disconnected: %s\n", bold("%d", s.Dropped))
	cmd.Printf("  Topics: %s, %s, %s\n", conf.DataTopic(), conf.LEDTopic(), conf.CommandTopic())
	if brokers := conf.KafkaBrokers(); len(brokers) > 0 {
		cmd.Printf("  Kafka mirror: %v\n", brokers)
	}

	cmd.Println()

	cmd.Println(bold("Configuration:"))
	cmd.Printf("  Interval: %s\n", bold("%s", conf.Interval()))
	if c := data.cycles; c != nil && c.Last != "" {
		cmd.Printf("  Last periodic cycle: %s (%d on schedule)\n", c.Last, c.Continuous)
	}
	cmd.Printf("  Error policy: %s\n", bold("%s", conf.ErrorPolicy()))
	cmd.Printf("  Alarm enabled: %s\n", bool2Text(conf.AlarmEnabled()))
	cmd.Printf("  Sensor source: %s\n", bold("%s", conf.SensorSource()))
	cmd.Printf("  Indicator driver: %s\n", bold("%s", conf.IndicatorDriver()))
	cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
}
