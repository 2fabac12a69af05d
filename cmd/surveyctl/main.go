package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/app"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/db"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "surveyctl",
	Short: "Survey rewards CLI",
	Long: `surveyctl runs the survey reward program against a local workspace ledger.

- Workspace: a directory holding survey.yml, an optional .env and the .survey state directory
  (SQLite ledger and logs).
- Survey: a campaign record owned by its creator. It pays a fixed native and/or token reward to
  each participant who claims, up to max participants, until the owner closes it.
- Keypairs: solana-keygen JSON files. The --keypair flag (or SURVEY_KEYPAIR) selects the signer.
- Funding: 'fund' and 'mint' are operator actions on the host ledger. They stand in for the
  faucet and token program and are not part of the survey program.
- Event log: every committed instruction and funding action; view with 'surveyctl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return app.LoadEnv(workspace)
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if code, ok := domain.CodeOf(err); ok {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", code, err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SURVEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-operator", "actor recorded on funding events")
	rootCmd.PersistentFlags().StringP("keypair", "k", "", "signer keypair file (solana-keygen JSON)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("keypair", rootCmd.PersistentFlags().Lookup("keypair"))
}

func registerCommands() {
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(addressCmd())
	rootCmd.AddCommand(fundCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(mintCmd())
	rootCmd.AddCommand(surveyCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- helpers ---

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func loadSigner() (solana.PrivateKey, error) {
	path := strings.TrimSpace(viper.GetString("keypair"))
	if path == "" {
		return nil, fmt.Errorf("no signer: pass --keypair or set SURVEY_KEYPAIR")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return key, nil
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return key, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}

// setEnvValue writes key=value into the .env file at path, replacing an existing entry.
func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o600)
}
