package commands

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/splitup/internal/adapters/eventstream"
	"go.trai.ch/splitup/internal/core/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (c *CLI) newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe the event stream of a running server",
	}

	var (
		addr  string
		kinds []string
		exec  uint64
	)
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print events as the server publishes them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := eventstream.Dial(addr)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			req := eventstream.SubscribeRequest{ExecutionID: domain.ExecutionID(exec)}
			for _, k := range kinds {
				req.Kinds = append(req.Kinds, domain.EventKind(k))
			}
			sub, err := client.Subscribe(cmd.Context(), req)
			if err != nil {
				return err
			}
			for {
				e, err := sub.Recv()
				if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
					return nil
				}
				if err != nil {
					return err
				}
				renderEvent(cmd.OutOrStdout(), e)
			}
		},
	}
	watch.Flags().StringVar(&addr, "addr", domain.DefaultConfig().Stream.Listen, "Event stream address")
	watch.Flags().StringSliceVar(&kinds, "kind", nil, "Only print events of this kind, repeatable")
	watch.Flags().Uint64Var(&exec, "exec", 0, "Only print events of this execution")
	cmd.AddCommand(watch)

	return cmd
}
