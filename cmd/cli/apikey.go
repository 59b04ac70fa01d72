package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/anstrom/ragescanner/internal/auth"
	"github.com/anstrom/ragescanner/internal/errors"
)

var apiKeyOutput string

// apiKeyCmd groups the API key helpers.
var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Create API keys for the server",
	Long: `Create API keys for "ragescanner serve".

The server stores only bcrypt hashes: put the printed hash in the
api.api_keys list of the configuration file and hand the key itself to
the client. Keys are sent in the X-API-Key header, as a Bearer token, or
as the api_key query parameter for WebSocket clients.`,
}

var apiKeyGenerateCmd = &cobra.Command{
	Use:     "generate",
	Short:   "Generate a new API key and its hash",
	Example: `  ragescanner apikey generate`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		return writeAPIKey(cmd.OutOrStdout(), apiKeyOutput, key)
	},
}

var apiKeyHashCmd = &cobra.Command{
	Use:     "hash KEY",
	Short:   "Hash an existing API key",
	Example: `  ragescanner apikey hash rs_abcdefghijklmnopqrstuvwxyz234567`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !auth.IsValidAPIKeyFormat(key) {
			return errors.NewInternalError(errors.CodeValidation, "invalid API key format")
		}
		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}
		return writeAPIKey(cmd.OutOrStdout(), apiKeyOutput, &auth.GeneratedAPIKey{
			Key:       key,
			Hash:      hash,
			KeyPrefix: auth.CreateDisplayPrefix(key),
		})
	},
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyGenerateCmd)
	apiKeyCmd.AddCommand(apiKeyHashCmd)

	apiKeyCmd.PersistentFlags().StringVarP(&apiKeyOutput, "output", "o", outputTable, "Output format: table or json")
}

func writeAPIKey(w io.Writer, format string, key *auth.GeneratedAPIKey) error {
	if err := validateOutput(format); err != nil {
		return err
	}
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(key)
	}

	fmt.Fprintf(w, "API key:  %s\n", key.Key)
	fmt.Fprintf(w, "Prefix:   %s\n", key.KeyPrefix)
	fmt.Fprintf(w, "Hash:     %s\n\n", key.Hash)
	fmt.Fprintln(w, "Add the hash to api.api_keys in the configuration file.")
	fmt.Fprintln(w, "The key is not stored anywhere; copy it now.")
	return nil
}
