package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"cinebooker-cli/model"
)

func newLoginCmd() *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				user, err := promptIfEmpty(username, "Username", nonEmpty)
				if err != nil {
					return err
				}
				password, err := readPassword(cmd.InOrStdin(), passwordStdin)
				if err != nil {
					return err
				}

				token, err := a.sessions.Login(ctx, model.LoginPayload{Username: user, Password: password})
				if err != nil {
					return err
				}
				name := user
				if token.User != nil && token.User.Username != "" {
					name = token.User.Username
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var (
		username      string
		email         string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				user, err := promptIfEmpty(username, "Username", minLength(3))
				if err != nil {
					return err
				}
				mail, err := promptIfEmpty(email, "Email", nonEmpty)
				if err != nil {
					return err
				}
				password, err := readPassword(cmd.InOrStdin(), passwordStdin)
				if err != nil {
					return err
				}

				created, err := a.sessions.Register(ctx, model.RegisterPayload{Username: user, Email: mail, Password: password})
				if err != nil {
					return err
				}
				name := created.Username
				if name == "" {
					name = user
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Run `cinebooker login` to sign in.\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.sessions.Logout(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				session, ok := a.sessions.Session()
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
					return nil
				}
				line := session.User.Username
				if session.User.Email != "" {
					line += " <" + session.User.Email + ">"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", line, session.User.Id)
				return nil
			})
		},
	}
}

func promptIfEmpty(value string, label string, validate promptui.ValidateFunc) (string, error) {
	if value = strings.TrimSpace(value); value != "" {
		return value, nil
	}
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}
	result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(result), nil
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	prompt := promptui.Prompt{
		Label:    "Password",
		Mask:     '*',
		Validate: nonEmpty,
	}
	password, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

func nonEmpty(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("required")
	}
	return nil
}

func minLength(n int) promptui.ValidateFunc {
	return func(input string) error {
		if len(strings.TrimSpace(input)) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}
		return nil
	}
}
