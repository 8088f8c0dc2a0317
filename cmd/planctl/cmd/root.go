package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pilab-dev/planauth/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const AppName = "planctl"

var (
	cfgFile string
	cfg     = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   AppName,
	Short: "planctl issues and inspects planauth session tokens",
	Long: `A command-line tool for planauth operators. It signs and decodes session
tokens with the backend secret and asks the login portal about portal tokens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Setup(cfg.GetString("log-level"), true)
		return initConfig()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $HOME/.%s/config.yaml)", AppName))
	rootCmd.PersistentFlags().String("secret", "", "token signing secret (default $SECRET_KEY)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level")
	rootCmd.PersistentFlags().StringP("output", "o", "json", "output format: json or yaml")

	_ = cfg.BindPFlag("secret", rootCmd.PersistentFlags().Lookup("secret"))
	_ = cfg.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = cfg.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = cfg.BindEnv("secret", "SECRET_KEY")
	_ = cfg.BindEnv("validate-url", "PORTAL_SESSION_VALIDATE_URL")

	rootCmd.AddCommand(tokenCmd, portalCmd)
}

func initConfig() error {
	if cfgFile != "" {
		cfg.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.AddConfigPath(home + "/." + AppName)
		}
		cfg.SetConfigName("config")
		cfg.SetConfigType("yaml")
	}
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	if err := cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}
