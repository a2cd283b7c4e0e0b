package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.trai.ch/splitup/internal/adapters/config"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Register and inspect tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register <manifest>",
		Short: "Register a task from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			task, err := readManifest(args[0], config.DecodeTask)
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				if err := a.RegisterTask(ctx, caller, task); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "task %d registered\n", task.ID)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a registered task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "task id")
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				task, err := a.Task(ctx, domain.TaskID(id))
				if err != nil {
					return err
				}
				renderTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "eligible <id>",
		Short: "List the nodes that declare a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "task id")
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				owners, err := a.EligibleNodes(ctx, domain.TaskID(id))
				if err != nil {
					return err
				}
				for _, o := range owners {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), o); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	return cmd
}

func (c *CLI) newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Register and inspect models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register <manifest>",
		Short: "Register a model graph from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			model, err := readManifest(args[0], config.DecodeModel)
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				if err := a.RegisterModel(ctx, caller, model); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "model %d registered with %d tasks\n", model.ID, len(model.TaskIDs))
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a registered model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "model id")
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				model, err := a.Model(ctx, domain.ModelID(id))
				if err != nil {
					return err
				}
				renderModel(cmd.OutOrStdout(), model)
				return nil
			})
		},
	})

	return cmd
}

func readManifest[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path) //nolint:gosec // Path is supplied by the operator.
	if err != nil {
		var zero T
		return zero, zerr.With(zerr.Wrap(err, "failed to open manifest"), "path", path)
	}
	defer func() { _ = f.Close() }()

	v, err := decode(f)
	if err != nil {
		return v, zerr.With(zerr.Wrap(err, "failed to decode manifest"), "path", path)
	}
	return v, nil
}

func parseUint(s, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(domain.ErrValidation, "invalid "+what), "value", s)
	}
	return v, nil
}
