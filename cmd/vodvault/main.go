// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/buildinfo"
	"github.com/vodvault/vodvault/internal/config"
	"github.com/vodvault/vodvault/internal/database"
	"github.com/vodvault/vodvault/internal/models"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "vodvault",
		Short: "Offline video vault and catalog sync service",
		Long: `vodvault - A self-hosted service that mirrors a video catalog
locally, downloads offline copies with a bounded retention window,
and resolves playback between local files and provider streams.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunLoginCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/vodvault/). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for database and offline files (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath, pprofFlag)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of vodvault",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/vodvault/config.toml

You can specify either a directory path or a direct file path:
- Directory: vodvault generate-config --config-dir /path/to/config/
- File: vodvault generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func readPassword(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print(prompt)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return password, nil
}

func RunLoginCommand() *cobra.Command {
	var configDir, dataDir, username, password, providerToken string

	command := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the backend and store credentials",
		Long: `Authenticate against the content backend and store the account
credentials without starting the server.

The stored credentials are what the server uses for catalog sync and
playback authorization. A new login replaces the previous account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if dataDir != "" {
				os.Setenv("VODVAULT__DATA_DIR", dataDir)
				cfg, err = config.New(configDir, buildinfo.Version)
				if err != nil {
					return fmt.Errorf("failed to initialize configuration: %w", err)
				}
			}

			db, err := database.New(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			credStore, err := models.NewCredentialStore(db, cfg.EncryptionKey())
			if err != nil {
				return fmt.Errorf("failed to initialize credential store: %w", err)
			}

			if username == "" {
				fmt.Print("Enter username: ")
				if _, err := fmt.Scanln(&username); err != nil {
					return fmt.Errorf("failed to read username: %w", err)
				}
			}
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("username cannot be empty")
			}
			username = strings.TrimSpace(username)

			if password == "" {
				password, err = readPassword("Enter password: ")
				if err != nil {
					return err
				}
			}

			ctx := context.Background()
			client := backend.NewClient(cfg.Config.BackendURL, 0)

			account, err := client.Login(ctx, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if providerToken == "" {
				if existing, err := credStore.Get(ctx); err == nil {
					providerToken = existing.ProviderToken
				}
			}

			if err := credStore.Store(ctx, models.Credentials{
				Username:      username,
				Password:      password,
				ProviderToken: providerToken,
				UserID:        account.UserID,
				DisplayName:   account.DisplayName,
				Email:         account.Email,
			}); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}

			cmd.Printf("Logged in as '%s' (%s)\n", account.DisplayName, account.Email)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&dataDir, "data-dir", "",
		"data directory path (defaults to next to config file)")
	command.Flags().StringVar(&username, "username", "",
		"backend account username")
	command.Flags().StringVar(&password, "password", "",
		"backend account password (will prompt if not provided)")
	command.Flags().StringVar(&providerToken, "provider-token", "",
		"provider API bearer token for stream playback (kept from previous login if not provided)")

	return command
}
