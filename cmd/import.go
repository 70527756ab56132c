/*
Copyright © 2021 Edmond Cotterell

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snzark/crm/colors"
	"github.com/snzark/crm/csvimport"
	"github.com/spf13/cobra"
)

const DEFAULT_SERVER_URL = "http://localhost:3000"

func createImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import contacts from a CSV file",
		Long: `Parses a CSV file whose header row names contact fields (firstName, lastName,
email, address.city, socials.LinkedIn, ...), previews the first rows and sends
every row to the crm server in a single request. Either all contacts are
imported or none are.

The server & token can also be set with CRM_SERVER and CRM_TOKEN.`,
		RunE: runImport,
	}

	cmd.Flags().StringP("file", "f", "", "CSV file to import")
	cmd.Flags().StringP("server", "s", DEFAULT_SERVER_URL, "crm server URL")
	cmd.Flags().StringP("token", "t", "", "session token, see POST /api/auth/login")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().Duration("timeout", csvimport.DEFAULT_TIMEOUT, "how long to wait for the server")

	cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	config := newViper()
	config.BindPFlags(cmd.Flags())

	if cfgFile != "" {
		config.SetConfigFile(cfgFile)
		if err := config.ReadInConfig(); err != nil {
			return formattedError("error reading config file: %v", err)
		}
	}

	if config.GetString("token") == "" {
		return formattedError("a session token is required, pass --token or set %v_TOKEN", ENV_PREFIX)
	}

	batch, err := csvimport.ParseFile(config.GetString("file"))
	if err != nil {
		return formattedError("%v", err)
	}

	preview, err := csvimport.NewPreview(batch)
	if err != nil {
		return err
	}
	if err := preview.Render(cmd.OutOrStdout()); err != nil {
		return err
	}

	if !config.GetBool("yes") && !confirm(cmd, fmt.Sprintf("\nImport %d contacts? [y/N] ", batch.Len())) {
		cmd.Println("Import cancelled")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), config.GetDuration("timeout"))
	defer cancel()

	submitter := csvimport.Submitter{
		ServerURL: config.GetString("server"),
		Token:     config.GetString("token"),
	}

	started := time.Now()
	result, err := submitter.Submit(ctx, batch)
	if err != nil {
		printImportFailure(cmd, err)
		return errors.New("import failed")
	}

	cmd.Printf("%s %d contacts imported %s\n",
		colors.Green("✔"), result.Imported, colors.Faint(fmt.Sprintf("(%v)", time.Since(started).Round(time.Millisecond))))
	return nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Print(prompt)

	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printImportFailure(cmd *cobra.Command, err error) {
	var importErr *csvimport.ImportError
	var transportErr *csvimport.TransportError

	switch {
	case errors.As(err, &importErr):
		cmd.PrintErrf("%s %s\n", colors.Red("✘"), importErr.Message)
		for _, detail := range importErr.Details {
			cmd.PrintErrf("  %s %s\n", colors.Bold(detail.Field), detail.Message)
		}
	case errors.As(err, &transportErr):
		cmd.PrintErrf("%s %v\n", colors.Red("✘"), transportErr)
		cmd.PrintErrln("Nothing was imported, re-run the command to retry.")
	default:
		cmd.PrintErrf("%s %v\n", colors.Red("✘"), err)
	}
}
