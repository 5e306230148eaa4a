package main

import (
	"context"
	"strings"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/authz"
	"github.com/goliatone/go-accounts/repository"
	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

type migrateResult struct {
	Group      string   `json:"group"`
	Migrations []string `json:"migrations"`
}

func migrateCmd() *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *App, _ []string) (any, error) {
			if app.db == nil {
				return nil, errors.New("database driver "+app.config.Database.Driver+" has no schema", errors.CategoryBadInput)
			}

			run := repository.Migrate
			if rollback {
				run = repository.Rollback
			}
			group, err := run(ctx, app.db)
			if err != nil {
				return nil, err
			}

			out := migrateResult{Group: group.String(), Migrations: []string{}}
			for _, m := range group.Migrations {
				out.Migrations = append(out.Migrations, m.Name)
			}
			return out, nil
		}),
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")
	return cmd
}

func candidateFlags(cmd *cobra.Command, c *accounts.AccountCandidate) {
	cmd.Flags().StringVar(&c.Name, "name", "", "first name")
	cmd.Flags().StringVar(&c.Surname, "surname", "", "surname")
	cmd.Flags().StringVar(&c.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("surname")
	_ = cmd.MarkFlagRequired("password")
}

func registerCmd() *cobra.Command {
	var candidate accounts.AccountCandidate

	cmd := &cobra.Command{
		Use:   "register <login> <email>",
		Short: "Self register a client account",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpRegisterSelf, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			candidate.Login, candidate.Email = args[0], args[1]
			return app.manager.RegisterSelf(ctx, candidate)
		}),
	}
	candidateFlags(cmd, &candidate)
	return cmd
}

func registerAdminCmd() *cobra.Command {
	var (
		candidate accounts.AccountCandidate
		status    accounts.InitialStatus
		levels    []string
	)

	cmd := &cobra.Command{
		Use:   "register-admin <login> <email>",
		Short: "Register an account with explicit flags and extra access levels",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpRegisterByAdmin, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			for _, level := range levels {
				if err := app.authorize(ctx, asLogin, authz.OpGrantAccessLevel, authz.Target{Login: args[0], Level: strings.ToUpper(level)}); err != nil {
					return nil, err
				}
			}

			candidate.Login, candidate.Email = args[0], args[1]
			reg, err := app.manager.RegisterByAdmin(ctx, candidate, status)
			if err != nil {
				return nil, err
			}

			for _, level := range levels {
				err := app.write(ctx, func(ctx context.Context) error {
					account, err := app.manager.GrantAccessLevel(ctx, candidate.Login, level)
					if err == nil {
						reg.Account = account
					}
					return err
				})
				if err != nil {
					return nil, err
				}
			}
			return reg, nil
		}),
	}
	candidateFlags(cmd, &candidate)
	cmd.Flags().BoolVar(&status.Active, "active", true, "create the account active")
	cmd.Flags().BoolVar(&status.Registered, "registered", true, "create the account already confirmed")
	cmd.Flags().StringSliceVar(&levels, "level", nil, "additional access levels to grant")
	return cmd
}

func confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <token>",
		Short: "Confirm a registration",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpConfirmRegistration, authz.Target{}); err != nil {
				return nil, err
			}
			return app.manager.ConfirmRegistration(ctx, args[0])
		}),
	}
}

func loginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <login>",
		Short: "Verify credentials and record the attempt",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpVerifyCredentials, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}

			var account *accounts.Account
			err := app.write(ctx, func(ctx context.Context) error {
				var err error
				account, err = app.manager.VerifyCredentials(ctx, args[0], password)
				return err
			})
			return account, err
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password to verify")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func accessLevelCmd(use, short string, op authz.Operation, grant bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <login> <level>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			login, level := args[0], strings.ToUpper(args[1])
			if err := app.authorize(ctx, asLogin, op, authz.Target{Login: login, Level: level}); err != nil {
				return nil, err
			}

			var account *accounts.Account
			err := app.write(ctx, func(ctx context.Context) error {
				var err error
				if grant {
					account, err = app.manager.GrantAccessLevel(ctx, login, level)
				} else {
					account, err = app.manager.RevokeAccessLevel(ctx, login, level)
				}
				return err
			})
			return account, err
		}),
	}
}

func grantCmd() *cobra.Command {
	return accessLevelCmd("grant", "Grant an access level", authz.OpGrantAccessLevel, true)
}

func revokeCmd() *cobra.Command {
	return accessLevelCmd("revoke", "Revoke an access level", authz.OpRevokeAccessLevel, false)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status <login> <active|blocked>",
		Short:     "Activate or block an account",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"active", "blocked"},
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			var active bool
			switch args[1] {
			case "active":
				active = true
			case "blocked":
				active = false
			default:
				return nil, errors.New("unknown status "+args[1]+", expected active or blocked", errors.CategoryBadInput)
			}

			if err := app.authorize(ctx, asLogin, authz.OpSetAccountStatus, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}

			var account *accounts.Account
			err := app.write(ctx, func(ctx context.Context) error {
				var err error
				account, err = app.manager.SetAccountStatus(ctx, args[0], active)
				return err
			})
			return account, err
		}),
	}
}

func passwdCmd() *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "passwd <login>",
		Short: "Change your own password",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpChangeOwnPassword, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			err := app.write(ctx, func(ctx context.Context) error {
				return app.manager.ChangeOwnPassword(ctx, args[0], oldPassword, newPassword)
			})
			if err != nil {
				return nil, err
			}
			return app.manager.FindAccount(ctx, args[0])
		}),
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func adminPasswdCmd() *cobra.Command {
	var newPassword string

	cmd := &cobra.Command{
		Use:   "admin-passwd <login>",
		Short: "Replace an account password without the old one",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpChangePasswordAsAdmin, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			err := app.write(ctx, func(ctx context.Context) error {
				return app.manager.ChangePasswordAsAdmin(ctx, args[0], newPassword)
			})
			if err != nil {
				return nil, err
			}
			return app.manager.FindAccount(ctx, args[0])
		}),
	}
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func resetRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-request <email>",
		Short: "Request a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpRequestPasswordReset, authz.Target{}); err != nil {
				return nil, err
			}
			token, err := app.manager.RequestPasswordReset(ctx, args[0])
			if err != nil || token == nil {
				return nil, err
			}
			return token, nil
		}),
	}
}

func forceResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force-reset <login>",
		Short: "Issue a password reset token on behalf of an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpForcePasswordReset, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			return app.manager.ForcePasswordReset(ctx, args[0])
		}),
	}
}

func resetCmd() *cobra.Command {
	var newPassword string

	cmd := &cobra.Command{
		Use:   "reset <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpResetPassword, authz.Target{}); err != nil {
				return nil, err
			}
			return app.manager.ResetPasswordViaToken(ctx, args[0], newPassword)
		}),
	}
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func profileCmd() *cobra.Command {
	var (
		cmd                  *cobra.Command
		email, name, surname string
	)

	cmd = &cobra.Command{
		Use:   "profile <login>",
		Short: "Edit profile fields; only the given flags are changed",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpEditProfile, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}

			changes := accounts.ProfileChanges{}
			if cmd.Flags().Changed("email") {
				changes.Email = &email
			}
			if cmd.Flags().Changed("name") {
				changes.Name = &name
			}
			if cmd.Flags().Changed("surname") {
				changes.Surname = &surname
			}

			var account *accounts.Account
			err := app.write(ctx, func(ctx context.Context) error {
				var err error
				account, err = app.manager.EditProfile(ctx, args[0], changes)
				return err
			})
			return account, err
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&name, "name", "", "new first name")
	cmd.Flags().StringVar(&surname, "surname", "", "new surname")
	return cmd
}

func emailChangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "email-change <login> <new-email>",
		Short: "Request an email change token",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpRequestEmailChange, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			return app.manager.RequestEmailChange(ctx, args[0], args[1])
		}),
	}
}

func emailConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "email-confirm <token>",
		Short: "Apply a pending email change",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpConfirmEmailChange, authz.Target{}); err != nil {
				return nil, err
			}
			return app.manager.ConfirmEmailChange(ctx, args[0])
		}),
	}
}

func unblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <token>",
		Short: "Reactivate a locked out account with an unblock token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpConfirmAccountUnblock, authz.Target{}); err != nil {
				return nil, err
			}
			return app.manager.ConfirmAccountUnblock(ctx, args[0])
		}),
	}
}

type accountView struct {
	*accounts.Account
	ActiveLevels []accounts.AccessLevel `json:"active_levels"`
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <login>",
		Short: "Show an account and its active access levels",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *App, args []string) (any, error) {
			if err := app.authorize(ctx, asLogin, authz.OpFindAccount, authz.Target{Login: args[0]}); err != nil {
				return nil, err
			}
			account, err := app.manager.FindAccount(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return accountView{
				Account:      account,
				ActiveLevels: app.manager.AccessLevels().ListActiveRoles(account),
			}, nil
		}),
	}
}
