package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/expel-io/workbench-go/internal/constants"
	"github.com/expel-io/workbench-go/pkg/exclient"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		apiEndpoint string
		username    string
		password    string
		mfaCode     string
		apiKey      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to Expel Workbench",
		Long: `Verify credentials against the Workbench API and persist the endpoint
to the config file. API keys are persisted too; passwords never are.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiEndpoint == "" {
				apiEndpoint = viper.GetString("api")
			}

			if apiEndpoint == "" {
				apiEndpoint = constants.DefaultAPIEndpoint
			}

			config := &workbench.Config{APIEndpoint: apiEndpoint}

			if apiKey == "" {
				apiKey = viper.GetString("api_key")
			}

			if apiKey != "" {
				config.APIKey = apiKey
			} else {
				if username == "" {
					reader := bufio.NewReader(os.Stdin)
					fmt.Print("Username: ")
					username, _ = reader.ReadString('\n')
					username = strings.TrimSpace(username)
				}

				if username == "" {
					return ErrUsernameRequired
				}

				if password == "" {
					fmt.Print("Password: ")

					bytePassword, err := term.ReadPassword(int(syscall.Stdin))
					if err != nil {
						return fmt.Errorf("failed to read password: %w", err)
					}

					password = string(bytePassword)

					fmt.Println()
				}

				if mfaCode == "" {
					reader := bufio.NewReader(os.Stdin)
					fmt.Print("MFA code (leave empty if not required): ")
					mfaCode, _ = reader.ReadString('\n')
					mfaCode = strings.TrimSpace(mfaCode)
				}

				config.Username = username
				config.Password = password
				config.MFACode = mfaCode
			}

			client, err := exclient.New(cmd.Context(), config)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			// One cheap authenticated call proves the credentials work.
			if _, err := client.Organizations().OneOrNone(cmd.Context(), workbench.Limit(1)); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Println("Login successful.")

			return persistLogin(apiEndpoint, apiKey)
		},
	}

	cmd.Flags().StringVarP(&apiEndpoint, "api", "a", "", "API endpoint URL")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVarP(&mfaCode, "mfa-code", "m", "", "MFA code")
	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "API key")

	return cmd
}

func persistLogin(apiEndpoint, apiKey string) error {
	viper.Set("api", apiEndpoint)

	if apiKey != "" {
		viper.Set("api_key", apiKey)
	}

	if err := viper.WriteConfig(); err == nil {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("finding home directory: %w", err)
	}

	configPath := filepath.Join(home, ".workbench", "config.yml")
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := os.Chmod(configPath, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("restricting config permissions: %w", err)
	}

	return nil
}
