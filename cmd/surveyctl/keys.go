package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/app"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
)

func keygenCmd() *cobra.Command {
	var outPath string
	var force, setDefault bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			if _, err := os.Stat(outPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
			wallet := solana.NewWallet()
			if err := writeKeypair(outPath, wallet.PrivateKey); err != nil {
				return err
			}
			if setDefault {
				abs, err := filepath.Abs(outPath)
				if err != nil {
					return err
				}
				envPath := filepath.Join(viper.GetString("workspace"), app.EnvFile)
				if err := setEnvValue(envPath, "SURVEY_KEYPAIR", abs); err != nil {
					return err
				}
			}
			return printJSONOrTable(map[string]any{"pubkey": wallet.PublicKey().String(), "path": outPath})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&setDefault, "set-default", false, "record the keypair as SURVEY_KEYPAIR in the workspace .env")
	return cmd
}

// writeKeypair stores key as a solana-keygen JSON byte array.
func writeKeypair(path string, key solana.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func addressCmd() *cobra.Command {
	var surveyID, participant, mint string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Show the signer key or derived survey addresses",
		Long: `Without flags, prints the public key of the --keypair signer.
With --survey, prints the campaign address; add --participant for the participant record and
--mint for the campaign's token vault.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if surveyID == "" {
				key, err := loadSigner()
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"pubkey": key.PublicKey().String()})
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				programID := rt.Engine.ProgramID
				campaign, err := keys.Campaign(programID, surveyID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"program_id": programID.String(),
					"survey_id":  surveyID,
					"campaign":   campaign.String(),
				}
				if participant != "" {
					who, err := parseKey("participant", participant)
					if err != nil {
						return err
					}
					addr, err := keys.Participant(programID, surveyID, who)
					if err != nil {
						return err
					}
					out["participant"] = addr.String()
				}
				if mint != "" {
					m, err := parseKey("mint", mint)
					if err != nil {
						return err
					}
					vault, err := keys.TokenAccount(campaign, m)
					if err != nil {
						return err
					}
					out["vault"] = vault.String()
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&surveyID, "survey", "", "survey id")
	cmd.Flags().StringVar(&participant, "participant", "", "participant public key")
	cmd.Flags().StringVar(&mint, "mint", "", "reward mint, to derive the vault")
	return cmd
}
