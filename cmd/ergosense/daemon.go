package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ergosense/ergosense/pkg/config"
	"github.com/ergosense/ergosense/pkg/daemon"
	"github.com/ergosense/ergosense/pkg/version"
)

// NewDaemonCommand runs the control loop and the local API.
func NewDaemonCommand() *cobra.Command {
	var (
		alwaysAllowNonRootAccess bool
		checkConfig              bool
	)

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run ergosense daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			if checkConfig {
				c, err := config.NewFile(configPath)
				if err != nil {
					return err
				}
				logrus.WithFields(c.LogrusFields()).Info("config is valid")
				return nil
			}

			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
				"config":  configPath,
			}).Info("ergosense daemon starting")
			return daemon.Run(configPath, unixSocketPath, alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.BoolVar(&checkConfig, "check-config", false,
		"Load the config file, print the effective settings and exit.")

	return cmd
}
