package auth

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/threatengine/onboarding/cmd/cli/client"
	"github.com/threatengine/onboarding/cmd/cli/config"
)

var (
	username string
	password string
	register bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the API and store a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if register {
			body := map[string]string{"username": username}
			if password != "" {
				body["password"] = password
			}
			if err := client.Do(http.MethodPost, "/auth/register", body, nil); err != nil {
				return err
			}
		}

		body := map[string]string{"username": username}
		if password != "" {
			body["password"] = password
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := client.Do(http.MethodPost, "/auth/login", body, &resp); err != nil {
			return err
		}
		if err := config.SaveToken(resp.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Println("Logged in as", username)
		return nil
	},
}

// Init registers auth commands on the root command.
func Init(rootCmd *cobra.Command) {
	loginCmd.Flags().StringVarP(&username, "username", "u", "", "username")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "password (optional)")
	loginCmd.Flags().BoolVar(&register, "register", false, "register the user before logging in")
	_ = loginCmd.MarkFlagRequired("username")
	rootCmd.AddCommand(loginCmd)
}
