package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-harvester/internal/enrich"
	"github.com/spigell/job-harvester/internal/headhunter"
	"github.com/spigell/job-harvester/internal/pipeline"
	"github.com/spigell/job-harvester/internal/recruiters"
	"github.com/spigell/job-harvester/internal/schedule"
	"github.com/spigell/job-harvester/internal/sources"
)

const (
	app       = "job-harvester"
	envPrefix = "JOB_HARVESTER"
)

type Config struct {
	// Owner separates contacts and seen listings of several users sharing a database.
	Owner      string             `mapstructure:"owner"`
	Search     SearchConfig       `mapstructure:"search"`
	Sources    SourcesConfig      `mapstructure:"sources"`
	AI         AIConfig           `mapstructure:"ai"`
	Fetch      FetchConfig        `mapstructure:"fetch"`
	Redis      RedisConfig        `mapstructure:"redis"`
	Contacts   ContactsConfig     `mapstructure:"contacts"`
	Recruiters recruiters.Options `mapstructure:"recruiters"`
	Schedule   ScheduleConfig     `mapstructure:"schedule"`
}

type SearchConfig struct {
	Limit  int            `mapstructure:"limit" validate:"gte=0,lte=200"`
	Enrich enrich.Options `mapstructure:"enrich"`

	pipeline.Config `mapstructure:",squash"`
}

type SourcesConfig struct {
	Adzuna     sources.Config    `mapstructure:"adzuna"`
	JSearch    sources.Config    `mapstructure:"jsearch"`
	Jooble     sources.Config    `mapstructure:"jooble"`
	FindWork   sources.Config    `mapstructure:"findwork"`
	Indeed     sources.Config    `mapstructure:"indeed"`
	JobBank    sources.Config    `mapstructure:"jobbank"`
	Google     sources.Config    `mapstructure:"google"`
	Headhunter headhunter.Config `mapstructure:"headhunter"`
}

type AIConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Gemini  GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Browser        bool          `mapstructure:"browser"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	URLFile string        `mapstructure:"url_file"`
	SeenTTL time.Duration `mapstructure:"seen_ttl"`
}

type ContactsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DatabaseURL     string `mapstructure:"database_url"`
	DatabaseURLFile string `mapstructure:"database_url_file"`
	Buffer          int    `mapstructure:"buffer" validate:"gte=0"`
}

type ScheduleConfig struct {
	Timeout  time.Duration          `mapstructure:"timeout"`
	Searches []schedule.SavedSearch `mapstructure:"searches" validate:"dive"`
}

var (
	// Used for flags.
	cfgFile string

	validate = validator.New()

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-harvester searches many job boards at once and ranks the offers against your résumé",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-harvester.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command works without any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env file is fine: variables may come from the real environment.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error. Without any file the
	// defaults and the environment are used.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Owner == "" {
		config.Owner = "default"
	}
	if err := validate.Struct(config); err != nil {
		return nil, err
	}

	return &config, nil
}
