package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/devlet/pkg/logger"
)

func init() {
	// .env is optional, existing variables win
	_ = godotenv.Load()

	configureEnv(viper.GetViper())

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.devlet")
	viper.AddConfigPath(".")

	setDefaults(viper.GetViper())

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

// envKeys have no default, so Unmarshal only sees them from the
// environment once they are bound.
var envKeys = []string{
	"provider",
	"model",
	"profile",
	"anthropic.api_key",
	"anthropic.base_url",
	"openai.api_key",
	"openai.base_url",
	"google.api_key",
	"static.reply",
	"retry.attempts",
	"retry.initial_delay",
	"retry.max_delay",
	"retry.backoff_type",
	"context.include",
	"context.ignore",
}

// configureEnv maps DEVLET_* variables onto config keys, e.g.
// DEVLET_OPENAI_BASE_URL onto openai.base_url.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("DEVLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_tokens", 8192)
	v.SetDefault("temperature", 0.5)
	v.SetDefault("stream", true)
	v.SetDefault("timeout", "5m")
	v.SetDefault("dispatch", "confirm")
	v.SetDefault("backup", true)
	v.SetDefault("create_if_missing", false)
	v.SetDefault("directive.prefix", "@/")
	v.SetDefault("directive.skip_unknown", false)
	v.SetDefault("calls.tag", "CALL")
	v.SetDefault("context.selector", "keyword")
	v.SetDefault("context.max_files", 10)
	v.SetDefault("context.max_bytes", 200_000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
}

var rootCmd = &cobra.Command{
	Use:   "devlet",
	Short: "Devlet turns queries into anchored file edits through a language model",
	Long: `Devlet sends a query, inline directives expanded, together with relevant files to a
language model and applies the tool calls found in the reply.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if path := viper.GetString("config"); path != "" {
			viper.SetConfigFile(path)
			if err := viper.ReadInConfig(); err != nil {
				return errors.Wrapf(err, "failed to read config %s", path)
			}
		}
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		logger.SetLogOutput(os.Stderr)

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			return err
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if tracingShutdown == nil {
			return nil
		}
		return tracingShutdown(cmd.Context())
	},
}

func main() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a config file")
	flags.String("provider", "", "LLM provider to use (anthropic, openai, google or static)")
	flags.String("model", "", "LLM model to use (overrides config)")
	flags.Int("max-tokens", 0, "Maximum tokens for response (overrides config)")
	flags.String("profile", "", "Named config profile to apply")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (fmt, text or json)")

	bindFlag("config", flags.Lookup("config"))
	bindFlag("provider", flags.Lookup("provider"))
	bindFlag("model", flags.Lookup("model"))
	bindFlag("max_tokens", flags.Lookup("max-tokens"))
	bindFlag("profile", flags.Lookup("profile"))
	bindFlag("log_level", flags.Lookup("log-level"))
	bindFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(withTracing(runCmd))
	rootCmd.AddCommand(withTracing(insertCmd))
	rootCmd.AddCommand(withTracing(parseCmd))
	rootCmd.AddCommand(withTracing(expandCmd))
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
