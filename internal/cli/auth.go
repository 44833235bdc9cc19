package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"xalvion/internal/app/gateway"
	"xalvion/internal/pkg/auth/jwt"
	"xalvion/internal/pkg/errs"
)

func init() {
	loginCmd.Flags().StringP("username", "u", "", "account username")
	registerCmd.Flags().StringP("username", "u", "", "account username")
	registerCmd.Flags().StringP("email", "e", "", "account email")
	registerCmd.Flags().String("display-name", "", "display name shown to other users")
	whoamiCmd.Flags().Bool("refresh", false, "fetch the profile from the backend")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reader := bufio.NewReader(os.Stdin)

		username, _ := cmd.Flags().GetString("username")
		if username = strings.TrimSpace(username); username == "" {
			if username, err = promptLine(reader, "Username"); err != nil {
				return err
			}
		}
		password, err := promptSecret(reader, "Password")
		if err != nil {
			return err
		}

		res, err := a.gateway.Login(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		if err := a.session.Set(res.Identity, res.Credential); err != nil {
			return err
		}

		fmt.Printf("Signed in as %s.\n", res.Identity.Name())
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in as it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reader := bufio.NewReader(os.Stdin)

		in := gateway.RegisterInput{}
		in.Username, _ = cmd.Flags().GetString("username")
		in.Email, _ = cmd.Flags().GetString("email")
		in.DisplayName, _ = cmd.Flags().GetString("display-name")

		if strings.TrimSpace(in.Username) == "" {
			if in.Username, err = promptLine(reader, "Username"); err != nil {
				return err
			}
		}
		if strings.TrimSpace(in.Email) == "" {
			if in.Email, err = promptLine(reader, "Email"); err != nil {
				return err
			}
		}
		for {
			if in.Password, err = promptSecret(reader, "Password"); err != nil {
				return err
			}
			confirm, err := promptSecret(reader, "Confirm password")
			if err != nil {
				return err
			}
			if confirm == in.Password {
				break
			}
			fmt.Println("Passwords do not match. Please try again.")
		}

		res, err := a.gateway.Register(cmd.Context(), in)
		if err != nil {
			return err
		}
		if err := a.session.Set(res.Identity, res.Credential); err != nil {
			return err
		}

		fmt.Printf("Account created. Signed in as %s.\n", res.Identity.Name())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.session.Load()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not signed in.")
			return nil
		}
		if err := a.session.Clear(); err != nil {
			return err
		}

		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.session.Load()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not signed in.")
			return nil
		}

		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			profile, err := a.gateway.GetProfile(cmd.Context())
			if errs.IsAuth(err) {
				_ = a.session.Clear()
				return err
			}
			if err != nil {
				return err
			}
			a.session.SetIdentity(*profile)
		}

		identity, _ := a.session.Identity()
		fmt.Printf("User:     %s\n", identity.Username)
		if identity.DisplayName != "" {
			fmt.Printf("Name:     %s\n", identity.DisplayName)
		}
		fmt.Printf("User ID:  %s\n", identity.UserID)
		if identity.Email != "" {
			fmt.Printf("Email:    %s\n", identity.Email)
		}

		if claims, err := jwt.ParseClaims(a.session.Credential()); err == nil && claims.ExpiresAt != 0 {
			fmt.Printf("Session:  expires %s\n", humanize.Time(time.Unix(claims.ExpiresAt, 0)))
		}
		return nil
	},
}
