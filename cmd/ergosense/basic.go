package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ergosense/ergosense/pkg/status"
	"github.com/ergosense/ergosense/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewCycleCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "cycle",
		Short:   "Run one cycle now",
		GroupID: gBasic,
		Long: `Run one sense/evaluate/actuate/publish cycle now instead of waiting for the next one.

If a cycle is already running, this waits for it to finish first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := apiClient.RunCycle()
			if err != nil {
				return fmt.Errorf("failed to run cycle: %v", err)
			}

			cmd.Printf("Cycle #%d: %s, light %s\n", s.Seq, overallText(s.Overall), bold("%s", s.Light))
			cmd.Printf("  %s\n  %s\n", s.Display[0], s.Display[1])
			return nil
		},
	}
}

func NewErrorPolicyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "error-policy [ignore|warn|bad]",
		Short:   "Set how out-of-range sensor readings affect the overall status",
		GroupID: gAdvanced,
		Long: `Set how out-of-range sensor readings (ERROR statuses) affect the overall status.

  ignore  ERROR statuses are not consulted (default)
  warn    any ERROR counts as WARN
  bad     any ERROR counts as BAD`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := status.ParseErrorPolicy(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.SetErrorPolicy(p)
			if err != nil {
				return fmt.Errorf("failed to set error policy: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set error policy to %s", p)

			return nil
		},
	}
}

func NewAlarmCommand() *cobra.Command {
	return newEnableDisableCommand(
		"alarm",
		"the alarm tone",
		`Enable or disable the alarm tone played when the overall status is BAD.

The red light is still switched on when the alarm is disabled.`,
		func() (string, error) { return apiClient.SetAlarm(true) },
		func() (string, error) { return apiClient.SetAlarm(false) },
	)
}
