package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/splitup/internal/core/domain"
)

func (c *CLI) newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage staked compute nodes and their accounts",
	}

	cmd.AddCommand(c.newNodeCreditCmd())
	cmd.AddCommand(c.newNodeRegisterCmd())
	cmd.AddCommand(c.newNodeStakeCmd())
	cmd.AddCommand(c.newNodeShowCmd())

	return cmd
}

func (c *CLI) newNodeCreditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credit <owner> <amount>",
		Short: "Fund an account's spendable balance (schedulers only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			amount, err := parseUint(args[1], "amount")
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				balance, err := a.Credit(ctx, caller, domain.Identity(args[0]), amount)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s balance %d\n", args[0], balance)
				return err
			})
		},
	}
}

func (c *CLI) newNodeRegisterCmd() *cobra.Command {
	var stake uint64
	cmd := &cobra.Command{
		Use:   "register <task-id>...",
		Short: "Register the caller as a node executing the given tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.caller()
			if err != nil {
				return err
			}
			specs := make([]domain.TaskID, len(args))
			for i, arg := range args {
				id, err := parseUint(arg, "task id")
				if err != nil {
					return err
				}
				specs[i] = domain.TaskID(id)
			}
			return c.with(cmd, func(ctx context.Context, a Application) error {
				node, err := a.RegisterNode(ctx, caller, specs, stake)
				if err != nil {
					return err
				}
				renderNode(cmd.OutOrStdout(), node, nil)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&stake, "stake", domain.DefaultMinStake, "Initial collateral moved from the balance")
	return cmd
}

func (c *CLI) newNodeStakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Adjust a node's collateral",
	}

	adjust := func(use, short string, increase bool) *cobra.Command {
		var owner string
		sub := &cobra.Command{
			Use:   use + " <amount>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				caller, err := c.caller()
				if err != nil {
					return err
				}
				amount, err := parseUint(args[0], "amount")
				if err != nil {
					return err
				}
				target := caller
				if owner != "" {
					target = domain.Identity(owner)
				}
				return c.with(cmd, func(ctx context.Context, a Application) error {
					op := a.DecreaseStake
					if increase {
						op = a.IncreaseStake
					}
					stake, err := op(ctx, caller, target, amount)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s stake %d\n", target, stake)
					return err
				})
			},
		}
		sub.Flags().StringVar(&owner, "owner", "", "Node owner (defaults to the caller)")
		return sub
	}

	cmd.AddCommand(adjust("increase", "Move balance into collateral", true))
	cmd.AddCommand(adjust("decrease", "Return collateral to the balance", false))
	return cmd
}

func (c *CLI) newNodeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner>",
		Short: "Show a node and its owner's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := domain.Identity(args[0])
			return c.with(cmd, func(ctx context.Context, a Application) error {
				node, err := a.Node(ctx, owner)
				if err != nil {
					return err
				}
				balance, err := a.Balance(ctx, owner)
				if err != nil {
					return err
				}
				renderNode(cmd.OutOrStdout(), node, &balance)
				return nil
			})
		},
	}
}
