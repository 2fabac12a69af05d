package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/app"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

// resolveTarget returns the campaign address of surveyID when set, else the parsed address arg.
func resolveTarget(rt *app.Runtime, surveyID string, args []string) (solana.PublicKey, error) {
	if surveyID != "" {
		return keys.Campaign(rt.Engine.ProgramID, surveyID)
	}
	if len(args) == 0 {
		return solana.PublicKey{}, fmt.Errorf("address or --survey required")
	}
	return parseKey("address", args[0])
}

func parseAmount(field, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return n, nil
}

func fundCmd() *cobra.Command {
	var surveyID string
	cmd := &cobra.Command{
		Use:   "fund [address] <lamports>",
		Short: "Airdrop lamports to an address or a survey's campaign",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := parseAmount("lamports", args[len(args)-1])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				addr, err := resolveTarget(rt, surveyID, args[:len(args)-1])
				if err != nil {
					return err
				}
				acct, err := rt.Host.Airdrop(ctx, viper.GetString("actor-id"), addr, lamports)
				if err != nil {
					return err
				}
				return printJSONOrTable(acct)
			})
		},
	}
	cmd.Flags().StringVar(&surveyID, "survey", "", "fund the campaign of this survey")
	return cmd
}

func balanceCmd() *cobra.Command {
	var surveyID string
	cmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "Show native and token balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if surveyID == "" && len(args) == 0 {
					key, err := loadSigner()
					if err != nil {
						return err
					}
					args = []string{key.PublicKey().String()}
				}
				addr, err := resolveTarget(rt, surveyID, args)
				if err != nil {
					return err
				}
				acct, err := rt.Engine.Repo.GetAccount(ctx, addr)
				if err != nil && !errors.Is(err, repo.ErrNotFound) {
					return err
				}
				tokens, err := rt.Engine.Repo.ListTokenAccounts(ctx, addr)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"address":  addr.String(),
						"lamports": acct.Lamports,
						"tokens":   tokens,
					})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Asset", "Account", "Amount"})
				tw.AppendRow(table.Row{"lamports", addr.String(), acct.Lamports})
				for _, ta := range tokens {
					tw.AppendRow(table.Row{ta.Mint.String(), ta.Address.String(), ta.Amount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&surveyID, "survey", "", "show the campaign of this survey")
	return cmd
}

func mintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Create token mints and mint supply",
	}
	cmd.AddCommand(mintCreateCmd())
	cmd.AddCommand(mintToCmd())
	cmd.AddCommand(mintShowCmd())
	return cmd
}

func mintCreateCmd() *cobra.Command {
	var authority, address string
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mint",
		Long:  "Create a mint. The authority defaults to the --keypair signer; the address is generated unless --address is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var auth solana.PublicKey
			if authority != "" {
				k, err := parseKey("authority", authority)
				if err != nil {
					return err
				}
				auth = k
			} else {
				key, err := loadSigner()
				if err != nil {
					return err
				}
				auth = key.PublicKey()
			}
			var addr solana.PublicKey
			if address != "" {
				k, err := parseKey("address", address)
				if err != nil {
					return err
				}
				addr = k
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				m, err := rt.Host.CreateMint(ctx, viper.GetString("actor-id"), addr, auth, decimals)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "mint authority public key")
	cmd.Flags().StringVar(&address, "address", "", "mint address")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "decimal places")
	return cmd
}

func mintToCmd() *cobra.Command {
	var surveyID string
	cmd := &cobra.Command{
		Use:   "to <mint> [owner] <amount>",
		Short: "Mint tokens to an owner or a survey's campaign",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKey("mint", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[len(args)-1])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				owner, err := resolveTarget(rt, surveyID, args[1:len(args)-1])
				if err != nil {
					return err
				}
				ta, err := rt.Host.MintTo(ctx, viper.GetString("actor-id"), mint, owner, amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(ta)
			})
		},
	}
	cmd.Flags().StringVar(&surveyID, "survey", "", "mint into the campaign vault of this survey")
	return cmd
}

func mintShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <mint>",
		Short: "Show a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseKey("mint", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				m, err := rt.Engine.Repo.GetMint(ctx, addr)
				if errors.Is(err, repo.ErrNotFound) {
					return fmt.Errorf("mint %s not found", addr)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}
