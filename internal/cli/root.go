package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time with -ldflags "-X .../cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile  string
	verbose  bool
	vaultDir string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "imgpull",
	Short: "imgpull - localize images referenced from Markdown notes",
	Long: `imgpull downloads the images a Markdown vault links to and rewrites the
links to point at local copies.

Remote images (http/https) are fetched once, local images are copied, and
every reference is rewritten to an inline link under the download directory.
References that already point inside the download directory are left alone.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "imgpull v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.imgpull/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", ".", "vault root directory")
	rootCmd.PersistentFlags().String("download-dir", model.DefaultDownloadDir, "vault-relative directory for downloaded images")
	rootCmd.PersistentFlags().String("naming", model.NamingContent, "file naming policy (content, unique)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("download_dir", rootCmd.PersistentFlags().Lookup("download-dir"))
	_ = viper.BindPFlag("naming.policy", rootCmd.PersistentFlags().Lookup("naming"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper(), model.DefaultConfig())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// config.yaml or config.toml in ~/.imgpull
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
	}

	// Read in environment variables that match IMGPULL_*, e.g. IMGPULL_HTTP_TIMEOUT
	viper.SetEnvPrefix("IMGPULL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configDir returns ~/.imgpull
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".imgpull"), nil
}

// setDefaults registers every configuration key so that environment
// variables are picked up by Unmarshal
func setDefaults(v *viper.Viper, cfg *model.Config) {
	v.SetDefault("download_dir", cfg.DownloadDir)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("naming.policy", cfg.Naming.Policy)
	v.SetDefault("naming.hash", cfg.Naming.Hash)
	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.max_bytes", cfg.HTTP.MaxBytes)
	v.SetDefault("http.insecure_tls", cfg.HTTP.InsecureTLS)
	v.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	v.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	v.SetDefault("rate_limiting.burst", cfg.RateLimiting.Burst)
	v.SetDefault("robots.respect", cfg.Robots.Respect)
	v.SetDefault("scan.html_tags", cfg.Scan.HTMLTags)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// loadConfig decodes the merged configuration (flags, env, file, defaults)
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
