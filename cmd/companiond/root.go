/*
 * Copyright 2026 VisaDesk Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visadesk/companion/pkg/compose"
	"github.com/visadesk/companion/pkg/logger"
	"github.com/visadesk/companion/pkg/runtime"
)

// Version is set at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "companiond",
		Short:         "Desktop companion for the local VisaDesk stack",
		Long:          "companiond supervises the locally hosted VisaDesk service stack and keeps reminder delivery working when the hosted service is unreachable.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("base-url", "b", "http://127.0.0.1:8800", "application tier base URL")
	flags.String("frontend-url", "http://127.0.0.1:8801", "presentation tier base URL")
	flags.String("data-root", defaultDataRoot(), "local data directory")
	flags.String("compose-file", defaultComposeFile(), "stack descriptor path")
	flags.String("project", "visadesk-local", "compose project name")
	flags.String("device-label", "", "device label reported on acks (generated when empty)")
	flags.Bool("debug", false, "enable debug logging")

	for _, key := range []string{"base-url", "frontend-url", "data-root", "compose-file", "project", "device-label", "debug"} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	viper.SetEnvPrefix("COMPANION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newStatusCmd(),
		newStartCmd(),
		newStopCmd(),
		newResetCmd(),
		newSyncCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

type appConfig struct {
	BaseURL     string
	FrontendURL string
	DataRoot    string
	ComposeFile string
	Project     string
	DeviceLabel string
	Debug       bool
}

func loadConfig() appConfig {
	cfg := appConfig{
		BaseURL:     viper.GetString("base-url"),
		FrontendURL: viper.GetString("frontend-url"),
		DataRoot:    viper.GetString("data-root"),
		ComposeFile: viper.GetString("compose-file"),
		Project:     viper.GetString("project"),
		DeviceLabel: viper.GetString("device-label"),
		Debug:       viper.GetBool("debug"),
	}

	if cfg.DeviceLabel == "" {
		hostname, _ := os.Hostname()
		cfg.DeviceLabel = fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
	}

	return cfg
}

func newLogger(cfg appConfig, component string) (logger.Logger, error) {
	logCfg := logger.DefaultConfig()
	logCfg.Output = "stderr"

	if cfg.Debug {
		logCfg.Debug = true
	}

	return logger.NewComponent(component, logCfg)
}

// vaultKey reads the local media-store encryption key from the
// environment the desktop shell provisions. Empty means locked.
func vaultKey() string {
	return os.Getenv("COMPANION_VAULT_KEY")
}

// apiToken is the bearer credential for the stack's own API.
func apiToken() string {
	return os.Getenv("COMPANION_API_TOKEN")
}

func newOrchestrator(cfg appConfig, log logger.Logger) *runtime.Orchestrator {
	runner := compose.NewCLIRunner(compose.Config{
		ComposeFile: cfg.ComposeFile,
		Project:     cfg.Project,
		Env:         runtime.StackEnv(cfg.DataRoot, vaultKey),
	}, log)

	return runtime.New(runtime.Config{
		DataRoot:    cfg.DataRoot,
		BaseURL:     cfg.BaseURL,
		FrontendURL: cfg.FrontendURL,
		VaultKey:    vaultKey,
		AuthToken:   apiToken,
	}, runner, log)
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".visadesk"
	}

	return filepath.Join(home, ".visadesk", "local")
}

func defaultComposeFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docker-compose.local.yml"
	}

	return filepath.Join(home, ".visadesk", "docker-compose.local.yml")
}

// wsBase derives the websocket base from the HTTP base URL.
func wsBase(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
