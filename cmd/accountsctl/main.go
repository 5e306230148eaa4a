// Command accountsctl runs account lifecycle operations against the configured
// store. Every command prints the resulting aggregate or token as JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-accounts/internal/config"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFiles   []string
	asLogin    string
)

var rootCmd = &cobra.Command{
	Use:           "accountsctl",
	Short:         "Manage marketplace accounts and access levels",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./accounts.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&asLogin, "as", "", "run the authorization check as this login")

	rootCmd.AddCommand(
		migrateCmd(),
		registerCmd(),
		registerAdminCmd(),
		confirmCmd(),
		loginCmd(),
		grantCmd(),
		revokeCmd(),
		statusCmd(),
		passwdCmd(),
		adminPasswdCmd(),
		resetRequestCmd(),
		forceResetCmd(),
		resetCmd(),
		profileCmd(),
		emailChangeCmd(),
		emailConfirmCmd(),
		unblockCmd(),
		showCmd(),
	)
}

// withApp wires the application for one command run.
func withApp(fn func(ctx context.Context, app *App, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx, config.Options{
			ConfigFile: configFile,
			EnvFiles:   envFiles,
		})
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := fn(ctx, app, args)
		if err != nil {
			app.GetLogger("cli").Error("command failed", "command", cmd.Name(), "error", err)
			return err
		}
		if out != nil {
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(out))
		}
		return nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
