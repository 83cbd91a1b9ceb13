package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func loginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Exchange e-mail and password for a session. The password is read from
PATORICO_PASSWORD, the --password flag or, when neither is set, stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := viper.GetString("password")
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Senha: ")
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}

			return withApp(func(a *app) error {
				ctx := cmd.Context()
				token, err := a.auth.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				if err := a.store.Save(ctx, token); err != nil {
					return err
				}

				ctx, err = a.signedIn(ctx)
				if err != nil {
					return err
				}
				profile, err := a.auth.Profile(ctx)
				if err != nil {
					a.logger.Debug("profile read after sign-in failed")
					fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Sessão iniciada."))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Olá, "+profile.Name+"!"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().String("password", "", "account password (prefer PATORICO_PASSWORD)")
	_ = viper.BindPFlag("password", cmd.Flags().Lookup("password"))

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				ctx := cmd.Context()
				if scoped, err := a.signedIn(ctx); err == nil {
					a.auth.SignOut(scoped)
				}
				if err := a.store.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Sessão encerrada."))
				return nil
			})
		},
	}
}

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				profile, err := a.auth.Profile(ctx)
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), profile)
				return nil
			})
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
