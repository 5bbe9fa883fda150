package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ergosense/ergosense/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Follow cycles, status changes and commands as they happen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			for ev := range apiClient.SubscribeEvents(ctx) {
				switch ev.Name {
				case events.CycleCompleted:
					payload, err := events.DecodeAs[events.CycleCompletedEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode cycle.completed event")
						continue
					}
					cmd.Printf("#%d %s %s %s\n", payload.Seq, overallText(statusFromWire(payload.Overall)), payload.Light, string(payload.Record))
				case events.StatusChanged:
					payload, err := events.DecodeAs[events.StatusChangedEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode status.changed event")
						continue
					}
					cmd.Printf("status changed: %s -> %s\n", payload.From, bold("%s", payload.To))
				case events.CommandReceived:
					payload, err := events.DecodeAs[events.CommandReceivedEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode command.received event")
						continue
					}
					cmd.Printf("command on %s: %s\n", payload.Topic, payload.Payload)
				default:
					logrus.WithField("event", ev.Name).Debug("ignoring unknown event")
				}
			}
			return nil
		},
	}
}

// statusFromWire maps a telemetry status name back to the overall name.
func statusFromWire(s string) string {
	switch s {
	case "PESSIMO":
		return "BAD"
	case "MEDIO":
		return "WARN"
	default:
		return s
	}
}
