package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvas/mqttlite"
)

var errSessionEnded = errors.New("session ended")

type pubFlags struct {
	qos      uint8
	retain   bool
	count    int
	interval time.Duration
}

func newPubCmd(global *globalFlags) *cobra.Command {
	flags := &pubFlags{}

	cmd := &cobra.Command{
		Use:   "pub <topic> [message]",
		Short: "Publish a message",
		Long:  "Publish a message to a topic. Without a message argument the payload is read from stdin.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if len(args) == 2 {
				payload = []byte(args[1])
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading payload: %w", err)
				}
				payload = data
			}

			return runPub(cmd, global, flags, args[0], payload)
		},
	}

	f := cmd.Flags()
	f.Uint8VarP(&flags.qos, "qos", "q", 0, "quality of service (0, 1 or 2)")
	f.BoolVarP(&flags.retain, "retain", "r", false, "ask the broker to retain the message")
	f.IntVarP(&flags.count, "count", "n", 1, "number of times to publish")
	f.DurationVar(&flags.interval, "interval", 0, "pause between repeated publishes")

	return cmd
}

func runPub(cmd *cobra.Command, global *globalFlags, flags *pubFlags, topic string, payload []byte) error {
	if flags.qos > 2 {
		return mqttlite.ErrInvalidQoS
	}
	if err := mqttlite.ValidateTopicName(topic); err != nil {
		return err
	}

	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := global.printer(cmd)

	s, err := connect(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer s.close()

	for i := range flags.count {
		if i > 0 && flags.interval > 0 {
			select {
			case <-time.After(flags.interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.runner.Publish(topic, payload, flags.qos, flags.retain, i); err != nil {
			return err
		}

		if err := s.awaitPublish(ctx, out); err != nil {
			return err
		}
	}

	return nil
}

// awaitPublish prints events until the outcome of the pending publish.
func (s *session) awaitPublish(ctx context.Context, out *printer) error {
	for {
		e := s.next(ctx)
		if e == nil {
			return ctx.Err()
		}
		out.event(e)

		switch ev := e.(type) {
		case *mqttlite.PublishEvent:
			return ev.Err
		case *mqttlite.DisconnectEvent:
			if ev.Err != nil {
				return ev.Err
			}
			return errSessionEnded
		}
	}
}
