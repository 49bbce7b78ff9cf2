// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

// appDir is the per-user directory holding the config file, abort file and history.
const appDir = ".deskpilot"

type configKey struct{}

// NewRootCommand builds a fresh command tree. The interactive shell creates one
// per line so flags never leak from one command into the next.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "deskpilot",
		Short:         "DeskPilot drives the local desktop from natural-language commands.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				// Keep errors visible even though the configured logger never came up.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "deskpilot"})
				return err
			}
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()),
			)

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.deskpilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "deskpilot version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCommand(),
		newAbortCommand(),
		newSessionsCommand(),
		newConfigCommand(),
	)
	return rootCmd
}

// Execute runs the command line in os.Args and reports any error.
func Execute(ctx context.Context) error {
	fs := NewFailsafe()
	defer fs.Stop()

	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(WithFailsafe(ctx, fs))
	if err != nil && !errors.Is(err, context.Canceled) {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// LoadConfig resolves the configuration the way the root command does, for
// callers that need it before any command runs. cfgFile may be empty.
func LoadConfig(cfgFile string) (*config.Config, error) {
	return loadConfig(viper.New(), cfgFile)
}

func loadConfig(v *viper.Viper, cfgFile string) (*config.Config, error) {
	if err := initializeConfig(v, cfgFile); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, err
	}
	if err := resolvePaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initializeConfig reads the config file, if any, and binds DESKPILOT_* variables.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, appDir))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DESKPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// resolvePaths expands "~" in file settings and fills in the default abort file.
func resolvePaths(cfg *config.Config) error {
	if cfg.Failsafe.AbortFile == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("cannot locate home directory for the abort file: %w", err)
		}
		cfg.Failsafe.AbortFile = filepath.Join(home, appDir, "abort")
	}

	for _, p := range []*string{&cfg.Failsafe.AbortFile, &cfg.Store.Path, &cfg.Store.AuditLog, &cfg.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("cannot expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// configFrom returns the configuration loaded by PersistentPreRunE.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok {
		return nil, errors.New("configuration was not loaded")
	}
	return cfg, nil
}
