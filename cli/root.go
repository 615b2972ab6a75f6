package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "seq2seq",
	Short: "Train and run a German to English translation transformer",
	Long: `An encoder-decoder transformer trained from scratch on parallel
German/English sentence pairs.

Examples:
  # Train on data/ and save the model
  seq2seq train

  # Translate a sentence with a trained model
  seq2seq translate "eine gruppe von menschen steht vor einem iglu ."

  # Also render the cross-attention heatmap
  seq2seq translate --attention attn.png "zwei hunde spielen im schnee ."`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file path (e.g. seq2seq.yaml)")
	rootCmd.PersistentFlags().
		String("log-level", "info", "set the logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().
		String("data-dir", "data", "directory holding the corpus files")
	rootCmd.PersistentFlags().
		String("model-path", "models/seq2seq.gob", "checkpoint location")

	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	mustBindPFlag("model.path", rootCmd.PersistentFlags().Lookup("model-path"))
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config file not found: %s\n", cfgFile)
			os.Exit(1)
		}
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("seq2seq")
	}

	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SEQ2SEQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file [%s]: %v\n", viper.ConfigFileUsed(), err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the configured level.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", viper.GetString("log.level"), err)
	}
	cfg.Level = lvl
	return cfg.Build()
}
