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
	"strings"

	"github.com/go-playground/validator"
	devConfig "github.com/snzark/crm/dev/config"
	"github.com/snzark/crm/server"
	"github.com/snzark/crm/shared"
	"github.com/snzark/crm/utils"
	"github.com/spf13/cobra"
)

func createServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the crm server",
		Long: `Starts the crm API: contacts, CSV imports, tasks, uploads & the background
workers that send emails, SMS and calendar reminders.

Pass a yaml config with --config, or use --dev for the bundled development config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := serverConfig()
			if err != nil {
				return err
			}

			return server.Start(*config, isDevEnv)
		},
	}
}

// serverConfig reads the server config file & env vars into a validated 'shared.ServerConfig'
func serverConfig() (*shared.ServerConfig, error) {
	config := newViper()

	switch {
	case isDevEnv:
		config.SetConfigType("yaml")
		if err := config.ReadConfig(strings.NewReader(devConfig.SERVER_YML)); err != nil {
			return nil, formattedError("error reading dev server config: %v", err)
		}
	case cfgFile != "":
		if !utils.FileExist(cfgFile) {
			return nil, formattedError("server config file %v does not exist", cfgFile)
		}
		config.SetConfigFile(cfgFile)
		if err := config.ReadInConfig(); err != nil {
			return nil, formattedError("error reading server config file: %v", err)
		}
	default:
		return nil, formattedError("a server config is required, pass --config <file> or --dev")
	}

	serverConfig := shared.ServerConfig{}
	if err := config.Unmarshal(&serverConfig); err != nil {
		return nil, formattedError("invalid server config: %v", err)
	}

	if err := validator.New().Struct(serverConfig); err != nil {
		return nil, formattedError("invalid server config: %v", err)
	}

	return &serverConfig, nil
}
