package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

const entropyBytes = 8

type execOp func(ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID) (*domain.Execution, error)

func (c *CLI) newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exec",
		Aliases: []string{"execution"},
		Short:   "Request and drive model executions",
	}

	cmd.AddCommand(c.newExecRequestCmd())
	cmd.AddCommand(c.newExecShowCmd())
	cmd.AddCommand(c.newExecDispatchCmd())
	cmd.AddCommand(c.newExecAssignCmd())
	cmd.AddCommand(c.newExecStartCmd())
	cmd.AddCommand(c.newExecCompleteCmd())
	cmd.AddCommand(c.newExecFailCmd())
	cmd.AddCommand(c.newExecReleaseCmd())
	cmd.AddCommand(c.newExecCancelCmd())
	cmd.AddCommand(c.newExecVerifyCmd())

	return cmd
}

// runExec parses the execution id in args[0], applies op as the caller and
// renders the resulting execution.
func (c *CLI) runExec(cmd *cobra.Command, args []string, op execOp) error {
	caller, err := c.caller()
	if err != nil {
		return err
	}
	id, err := parseExecutionID(args[0])
	if err != nil {
		return err
	}
	return c.with(cmd, func(ctx context.Context, a Application) error {
		exec, err := op(ctx, a, caller, id)
		if err != nil {
			return err
		}
		renderExecution(cmd.OutOrStdout(), exec)
		return nil
	})
}

func (c *CLI) newExecRequestCmd() *cobra.Command {
	var (
		input  string
		maxFee uint64
	)
	cmd := &cobra.Command{
		Use:   "request <model-id>",
		Short: "Request an execution of a registered model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			modelID, err := parseUint(args[0], "model id")
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				exec, err := a.RequestExecution(ctx, caller, domain.ModelID(modelID), input, maxFee)
				if err != nil {
					return err
				}
				renderExecution(cmd.OutOrStdout(), exec)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Location of the model input")
	cmd.Flags().Uint64Var(&maxFee, "max-fee", 0, "Highest fee the requestor will pay")
	return cmd
}

func (c *CLI) newExecShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show an execution and its task records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecutionID(args[0])
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				exec, err := a.Execution(ctx, id)
				if err != nil {
					return err
				}
				renderExecution(cmd.OutOrStdout(), exec)
				return nil
			})
		},
	}
}

func (c *CLI) newExecDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <execution-id>",
		Short: "Assign nodes and verifiers to every unassigned record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecutionID(args[0])
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				n, dispatchErr := a.Dispatch(ctx, id)
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d assignments\n", n); err != nil {
					return err
				}
				return dispatchErr
			})
		},
	}
}

func (c *CLI) newExecAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <execution-id> <task-id> <node>",
		Short: "Assign a node to a pending task (schedulers only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseUint(args[1], "task id")
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.AssignTask(ctx, caller, id, domain.TaskID(taskID), domain.Identity(args[2]))
			})
		},
	}
}

func (c *CLI) newExecStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <execution-id> <index>",
		Short: "Mark an assigned task as started",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseUint(args[1], "task index")
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.StartTask(ctx, caller, id, index)
			})
		},
	}
}

func (c *CLI) newExecCompleteCmd() *cobra.Command {
	var (
		outputs []string
		seed    string
	)
	cmd := &cobra.Command{
		Use:   "complete <execution-id> <index>",
		Short: "Report a task's outputs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseUint(args[1], "task index")
			if err != nil {
				return err
			}
			entropy, err := parseEntropy(seed)
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.CompleteTask(ctx, caller, id, index, outputs, entropy)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&outputs, "output", "o", nil, "Output location, repeatable")
	cmd.Flags().StringVar(&seed, "entropy", "", "Hex encoded sampling entropy (default random)")
	return cmd
}

func (c *CLI) newExecFailCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <execution-id> <index>",
		Short: "Report that a task could not be executed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseUint(args[1], "task index")
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.FailTask(ctx, caller, id, index, reason)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Failure description")
	return cmd
}

func (c *CLI) newExecReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <execution-id> <task-id>",
		Short: "Return a failed task to pending for reassignment (schedulers only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseUint(args[1], "task id")
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.ReleaseTask(ctx, caller, id, domain.TaskID(taskID))
			})
		},
	}
}

func (c *CLI) newExecCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <execution-id>",
		Short: "Cancel an open execution (requestor only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.CancelExecution(ctx, caller, id)
			})
		},
	}
}

func (c *CLI) newExecVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Assign and report verification shadows",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "assign <execution-id> <index> <node>",
		Short: "Assign a verifier to a shadow record (schedulers only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseUint(args[1], "task index")
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.AssignVerifier(ctx, caller, id, index, domain.Identity(args[2]))
			})
		},
	})

	var outputs []string
	report := &cobra.Command{
		Use:   "report <execution-id> <index>",
		Short: "Report the verifier's recomputed outputs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseUint(args[1], "task index")
			if err != nil {
				return err
			}
			return c.runExec(cmd, args, func(
				ctx context.Context, a Application, caller domain.Identity, id domain.ExecutionID,
			) (*domain.Execution, error) {
				return a.ReportVerification(ctx, caller, id, index, outputs)
			})
		},
	}
	report.Flags().StringSliceVarP(&outputs, "output", "o", nil, "Output location, repeatable")
	cmd.AddCommand(report)

	return cmd
}

func parseExecutionID(s string) (domain.ExecutionID, error) {
	id, err := domain.ParseExecutionID(s)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(domain.ErrValidation, "invalid execution id"), "value", s)
	}
	return id, nil
}

// parseEntropy decodes hex entropy, drawing fresh random bytes when s is empty.
func parseEntropy(s string) ([]byte, error) {
	if s == "" {
		b := make([]byte, entropyBytes)
		if _, err := rand.Read(b); err != nil {
			return nil, zerr.Wrap(err, "failed to draw entropy")
		}
		return b, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInsufficientEntropy, "entropy must be hex encoded"), "value", s)
	}
	return b, nil
}
