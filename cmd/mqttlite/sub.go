package main

import (
	"github.com/spf13/cobra"

	"github.com/vitalvas/mqttlite"
)

type subFlags struct {
	qos   uint8
	count int
}

func newSubCmd(global *globalFlags) *cobra.Command {
	flags := &subFlags{}

	cmd := &cobra.Command{
		Use:   "sub <filter> [filter...]",
		Short: "Subscribe and print messages",
		Long:  "Subscribe to one or more topic filters and print messages until interrupted.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSub(cmd, global, flags, args)
		},
	}

	f := cmd.Flags()
	f.Uint8VarP(&flags.qos, "qos", "q", 0, "maximum quality of service (0, 1 or 2)")
	f.IntVarP(&flags.count, "count", "n", 0, "exit after this many messages, 0 runs until interrupted")

	return cmd
}

func runSub(cmd *cobra.Command, global *globalFlags, flags *subFlags, filters []string) error {
	if flags.qos > 2 {
		return mqttlite.ErrInvalidQoS
	}
	for _, filter := range filters {
		if err := mqttlite.ValidateTopicFilter(filter); err != nil {
			return err
		}
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

	for _, filter := range filters {
		if err := s.runner.Subscribe(filter, flags.qos, nil); err != nil {
			return err
		}
	}

	pending := len(filters)
	received := 0
	for {
		e := s.next(ctx)
		if e == nil {
			return nil
		}
		out.event(e)

		switch ev := e.(type) {
		case *mqttlite.SubscribeEvent:
			if ev.Err != nil {
				return ev.Err
			}
			pending--
		case *mqttlite.PublishRecvEvent:
			received++
			if flags.count > 0 && received >= flags.count && pending == 0 {
				return nil
			}
		case *mqttlite.DisconnectEvent:
			if ev.Err != nil {
				return ev.Err
			}
			return errSessionEnded
		}
	}
}
