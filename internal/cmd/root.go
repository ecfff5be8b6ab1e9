package cmd

import (
	"github.com/ProtonMail/uidlist"
	"github.com/ProtonMail/uidlist/internal/config"
	"github.com/ProtonMail/uidlist/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "uidlist",
	Short: "Stable IMAP UIDs for maildir messages",
	Long: `uidlist keeps the uid list file of a maildir in step with its messages.

Every message file in new/ and cur/ is bound to an IMAP UID that survives
flag changes and moves between the two directories. Several processes may
work on the same maildir at once; writers take turns through a lock file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// cfg is the configuration of the running command, loaded before any subcommand runs.
var cfg = config.Default()

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/uidlist/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	bindFlags()
}

func bindFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func loadConfig(*cobra.Command, []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.SetLevel(loaded.Logging.Level); err != nil {
		return err
	}

	cfg = loaded

	return nil
}

func openMailbox(dir string, options ...uidlist.Option) (*uidlist.Mailbox, error) {
	return uidlist.Open(dir, append(cfg.Options(), options...)...)
}
