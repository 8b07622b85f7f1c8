package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"skctl/internal/auth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [value]",
	Short: "Store a bearer token in the token file",
	Long: `Write a token obtained from your identity provider to --token-file, along
with its expiry. Later commands read the file and reload it once the token
is about to expire or the backend refuses it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := current.cfg.TokenFile
		if path == "" {
			return errors.New("--token-file is required")
		}
		if tokenTTL <= 0 {
			return fmt.Errorf("--ttl must be positive, got %s", tokenTTL)
		}
		token := strings.TrimSpace(args[0])
		if token == "" {
			return auth.ErrNoToken
		}

		expires := time.Now().Add(tokenTTL)
		if err := auth.SaveTokenFile(path, token, expires); err != nil {
			return err
		}
		cmd.Printf("✓ Token %s saved to %s, expires %s\n", auth.Fingerprint(token), path, expires.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "how long the token stays valid")
	rootCmd.AddCommand(tokenCmd)
}
