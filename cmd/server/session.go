package main

import (
	"context"
	"errors"
	"os"

	"github.com/ESHWARGEEK/CodeLearn/authclient"
	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const passwordEnvVar = "CODELEARN_PASSWORD"

var (
	sessionURL   string
	sessionEmail string
)

// sessionCmd logs in and keeps the session alive until interrupted, which
// exercises the proactive refresh against a running server.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Log in and keep the session refreshed until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		setupLogger(cfg)

		password := os.Getenv(passwordEnvVar)
		if sessionEmail == "" || password == "" {
			return errors.New("--email and " + passwordEnvVar + " are required")
		}
		baseURL := sessionURL
		if baseURL == "" {
			baseURL = cfg.GetAppURL()
		}

		client, err := authclient.New(baseURL, authclient.WithNavigator(authclient.NavigatorFunc(func(path string) {
			log.Info().Str("page", path).Msg("Navigate")
		})))
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := client.Login(ctx, sessionEmail, password); err != nil {
			return err
		}
		state := client.State()
		log.Info().Str("user", state.User.UserID).Str("tier", string(state.User.Tier)).
			Time("expiresAt", state.Tokens.ExpiresAt()).Msg("Logged in")

		<-waitForStopSignal()
		client.Logout(ctx)
		return nil
	},
}

func init() {
	sessionCmd.Flags().StringVar(&sessionURL, "url", "", "base URL of the auth server (defaults to APP_URL)")
	sessionCmd.Flags().StringVar(&sessionEmail, "email", "", "account email")
}
