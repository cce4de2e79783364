package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keygate/keygate/internal/config"
)

var (
	cfgFile    string
	appVersion string
	v          *viper.Viper
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	v = viper.New()
	cfgFile = ""

	cmd := &cobra.Command{
		Use:   "keygate",
		Short: "Admin sessions and API key issuance backed by SQL",
		Long: `keygate registers admins, signs their session tokens, and issues
one-year API keys to end users. Credentials live in SQLite, MySQL, PostgreSQL
or SQL Server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./keygate.yaml)")
	cmd.PersistentFlags().String("dialect", "", "store dialect: sqlite, mysql, postgres, sqlserver")
	cmd.PersistentFlags().String("dsn", "", "store connection string (sqlite: file path)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json")

	v.BindPFlag("store.dialect", cmd.PersistentFlags().Lookup("dialect"))
	v.BindPFlag("store.dsn", cmd.PersistentFlags().Lookup("dsn"))
	v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log.format", cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig layers .env, the config file and KEYGATE_* variables onto v.
// A missing .env or default config file is not an error; an explicit
// --config that cannot be read is.
func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	config.Bind(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("keygate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.keygate")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
