package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/app"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
	surveysdk "github.com/sol-bridge/202505-breakout-hackathon/sdk/go"
)

// submit signs ix with signer over accounts and runs it through the workspace engine.
func submit(ctx context.Context, rt *app.Runtime, signer solana.PrivateKey, ix instruction.Instruction, accounts []*solana.AccountMeta) error {
	env, err := surveysdk.Sign(rt.Engine.ProgramID, ix, accounts, signer)
	if err != nil {
		return err
	}
	res, err := rt.Engine.Process(ctx, env)
	if err != nil {
		return err
	}
	return printJSONOrTable(res)
}

func surveyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survey",
		Short: "Run survey program instructions",
	}
	cmd.AddCommand(surveyInitCmd())
	cmd.AddCommand(surveyClaimCmd())
	cmd.AddCommand(surveyNftCmd())
	cmd.AddCommand(surveyCloseCmd())
	cmd.AddCommand(surveyShowCmd())
	cmd.AddCommand(surveyListCmd())
	return cmd
}

func surveyInitCmd() *cobra.Command {
	var native, token uint64
	var maxParticipants uint32
	var mint string
	cmd := &cobra.Command{
		Use:   "init <survey-id>",
		Short: "Create a survey owned by the signer",
		Long: `Create a survey owned by the --keypair signer.

The campaign address (see 'surveyctl address --survey <id>') must already hold the minimum
balance, and its token vault must hold the token pool when --token is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := loadSigner()
			if err != nil {
				return err
			}
			if mint == "" {
				return fmt.Errorf("--mint is required")
			}
			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			ix := instruction.InitializeSurvey{
				SurveyID:           args[0],
				NativeRewardAmount: native,
				TokenRewardAmount:  token,
				MaxParticipants:    maxParticipants,
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return submit(ctx, rt, owner, ix, []*solana.AccountMeta{
					solana.Meta(owner.PublicKey()).SIGNER().WRITE(),
					solana.Meta(mintKey),
				})
			})
		},
	}
	cmd.Flags().Uint64Var(&native, "native", 0, "lamports paid per participant")
	cmd.Flags().Uint64Var(&token, "token", 0, "tokens paid per participant")
	cmd.Flags().Uint32Var(&maxParticipants, "max", 0, "maximum participants")
	cmd.Flags().StringVar(&mint, "mint", "", "reward token mint")
	return cmd
}

func surveyClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <survey-id>",
		Short: "Claim the survey reward as the signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participant, err := loadSigner()
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return submit(ctx, rt, participant, instruction.ClaimReward{SurveyID: args[0]}, []*solana.AccountMeta{
					solana.Meta(participant.PublicKey()).SIGNER().WRITE(),
				})
			})
		},
	}
}

func surveyNftCmd() *cobra.Command {
	var participant, mint string
	cmd := &cobra.Command{
		Use:   "nft <survey-id>",
		Short: "Distribute one NFT to a participant (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := loadSigner()
			if err != nil {
				return err
			}
			who, err := parseKey("participant", participant)
			if err != nil {
				return err
			}
			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return submit(ctx, rt, owner, instruction.DistributeNft{SurveyID: args[0]}, []*solana.AccountMeta{
					solana.Meta(owner.PublicKey()).SIGNER(),
					solana.Meta(who).WRITE(),
					solana.Meta(mintKey).WRITE(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "participant public key")
	cmd.Flags().StringVar(&mint, "mint", "", "NFT mint")
	_ = cmd.MarkFlagRequired("participant")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func surveyCloseCmd() *cobra.Command {
	var destination string
	cmd := &cobra.Command{
		Use:   "close <survey-id>",
		Short: "Close a survey (owner only)",
		Long:  "Close a survey. The campaign's remaining lamports go to --destination, or to the owner when unset.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := loadSigner()
			if err != nil {
				return err
			}
			accounts := []*solana.AccountMeta{solana.Meta(owner.PublicKey()).SIGNER().WRITE()}
			if destination != "" {
				dest, err := parseKey("destination", destination)
				if err != nil {
					return err
				}
				accounts = append(accounts, solana.Meta(dest).WRITE())
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return submit(ctx, rt, owner, instruction.CloseSurvey{SurveyID: args[0]}, accounts)
			})
		},
	}
	cmd.Flags().StringVar(&destination, "destination", "", "recipient of the remaining balance")
	return cmd
}

func surveyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <survey-id>",
		Short: "Show a survey's campaign state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				st, err := rt.Engine.SurveyStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				c := st.Campaign
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Field", "Value"})
				tw.AppendRow(table.Row{"survey_id", c.SurveyID})
				tw.AppendRow(table.Row{"campaign", st.Address.String()})
				tw.AppendRow(table.Row{"owner", c.Owner.String()})
				tw.AppendRow(table.Row{"active", c.Active})
				tw.AppendRow(table.Row{"participants", fmt.Sprintf("%d / %d", c.CurrentParticipants, c.MaxParticipants)})
				tw.AppendRow(table.Row{"native_reward", c.NativeRewardAmount})
				tw.AppendRow(table.Row{"token_reward", c.TokenRewardAmount})
				tw.AppendRow(table.Row{"reward_mint", c.RewardTokenMint.String()})
				tw.AppendRow(table.Row{"lamports", st.Lamports})
				if st.VaultAddress != nil {
					tw.AppendRow(table.Row{"vault", *st.VaultAddress})
					tw.AppendRow(table.Row{"vault_balance", st.VaultBalance})
				}
				tw.AppendRow(table.Row{"created_at", time.Unix(c.CreatedAt, 0).UTC().Format(time.RFC3339)})
				tw.Render()
				return nil
			})
		},
	}
}

func surveyListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List surveys, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				surveys, err := rt.Engine.ListSurveys(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(surveys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Survey", "Campaign", "Active", "Participants", "Native", "Token", "Lamports"})
				for _, st := range surveys {
					c := st.Campaign
					tw.AppendRow(table.Row{c.SurveyID, st.Address.String(), c.Active,
						fmt.Sprintf("%d / %d", c.CurrentParticipants, c.MaxParticipants),
						c.NativeRewardAmount, c.TokenRewardAmount, st.Lamports})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum surveys to list")
	return cmd
}

func participantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Inspect participant records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <survey-id> [participant]",
		Short: "Show a participant's claim state (defaults to the signer)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var who solana.PublicKey
			if len(args) == 2 {
				k, err := parseKey("participant", args[1])
				if err != nil {
					return err
				}
				who = k
			} else {
				key, err := loadSigner()
				if err != nil {
					return err
				}
				who = key.PublicKey()
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				st, err := rt.Engine.ParticipantStatus(ctx, args[0], who)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	})
	return cmd
}
