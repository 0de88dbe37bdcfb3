package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/receipt-console/internal/session"
)

// LoginCmd signs in and stores the session token
func LoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in to the receipt backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				var err error
				password, err = promptPassword()
				if err != nil {
					return err
				}
			}

			api, sessions, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := api.Login(cmd.Context(), args[0], password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			user := session.User{ID: result.User.ID, Name: result.User.Name, Email: result.User.Email}
			if err := sessions.Set(result.Token, user); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			color.Green("✓ Signed in as %s", result.User.Email)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

// RegisterCmd creates an account and signs straight in
func RegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [name] [email]",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				var err error
				password, err = promptPassword()
				if err != nil {
					return err
				}
			}

			api, sessions, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := api.Register(cmd.Context(), args[0], args[1], password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			user := session.User{ID: result.User.ID, Name: result.User.Name, Email: result.User.Email}
			if err := sessions.Set(result.Token, user); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			color.Green("✓ Registered and signed in as %s", result.User.Email)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

// LogoutCmd clears the stored session
func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sessions, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sessions.Clear(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

// WhoamiCmd prints the account the stored token belongs to
func WhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sessions, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			user, err := sessions.User()
			if err != nil {
				return fmt.Errorf("not signed in\nHint: run 'rcpt login <email>' first")
			}
			if _, err := sessions.Token(); err != nil {
				return fmt.Errorf("session for %s has expired\nHint: run 'rcpt login <email>' again", user.Email)
			}
			fmt.Printf("%s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
