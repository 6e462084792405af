package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/ai/gemini"
	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/contacts"
	"github.com/spigell/job-harvester/internal/criteria"
	"github.com/spigell/job-harvester/internal/db"
	"github.com/spigell/job-harvester/internal/enrich"
	"github.com/spigell/job-harvester/internal/fetch"
	"github.com/spigell/job-harvester/internal/headhunter"
	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/pipeline"
	"github.com/spigell/job-harvester/internal/recruiters"
	"github.com/spigell/job-harvester/internal/schedule"
	"github.com/spigell/job-harvester/internal/scoring"
	"github.com/spigell/job-harvester/internal/secrets"
	"github.com/spigell/job-harvester/internal/sources"
)

// services holds everything a command may need. Close releases it in reverse order.
type services struct {
	config   *Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	finder   *recruiters.Finder
	contacts contacts.Store
	writer   *contacts.Writer
	seen     schedule.SeenSet

	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// bootstrap creates the logger and reads the config, like every command starts.
func bootstrap() (*Config, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-harvester", zap.String("version", version), zap.String("owner", config.Owner))
	return config, logger
}

func newServices(ctx context.Context, config *Config, logger *zap.Logger) (*services, error) {
	s := &services{config: config, logger: logger}

	rdb, err := openRedis(ctx, config.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		s.seen = schedule.NewRedisSeen(rdb, config.Owner, config.Redis.SeenTTL)
	} else {
		s.seen = schedule.NewMemorySeen()
	}

	if err := s.openContacts(ctx); err != nil {
		s.Close()
		return nil, err
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("language model disabled, falling back to heuristics", zap.Error(err))
		generator = nil
	}

	registry, search, err := newRegistry(ctx, config.Sources, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	var judge ai.Judge
	if generator != nil && config.Search.Filtering.Judge != nil && config.Search.Filtering.Judge.Enabled {
		judge = gemini.NewJudge(generator, logger, config.AI.Gemini.MaxLogLength)
	}

	var sink enrich.ContactSink
	if s.writer != nil {
		sink = s.writer
	}

	s.pipeline, err = pipeline.New(pipeline.Deps{
		Logger:    logger,
		Registry:  registry,
		Extractor: criteria.New(generator, config.Search.DefaultLocation, logger),
		Scorer:    scoring.New(),
		Enricher:  enrich.New(newFetcher(config.Fetch, rdb, logger), sink, config.Search.Enrich, logger),
		Judge:     judge,
		History:   s.seen,
	}, config.Search.Config)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building the pipeline: %w", err)
	}

	s.finder = recruiters.New(newRecruiterGenerator(ctx, config.AI, logger), searcherOrNil(search), config.Recruiters, logger)
	return s, nil
}

func (s *services) openContacts(ctx context.Context) error {
	cfg := s.config.Contacts
	if !cfg.Enabled {
		return nil
	}

	databaseURL, err := secrets.Optional(secrets.Source{
		Name:  "contacts database url",
		Value: cfg.DatabaseURL,
		File:  cfg.DatabaseURLFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		return err
	}

	if databaseURL == "" {
		s.logger.Warn("contacts are kept in memory only", zap.String("hint", "set contacts.database_url or DATABASE_URL"))
		s.contacts = contacts.NewMemory()
	} else {
		pool, err := db.NewPostgresPool(ctx, databaseURL)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)

		store := contacts.NewPostgres(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating contacts: %w", err)
		}
		s.contacts = store
	}

	s.writer = contacts.NewWriter(s.contacts, s.config.Owner, cfg.Buffer, s.logger)
	s.closers = append(s.closers, s.writer.Close)
	return nil
}

func openRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	redisURL, err := secrets.Optional(secrets.Source{
		Name:  "redis url",
		Value: cfg.URL,
		File:  cfg.URLFile,
		Env:   "REDIS_URL",
	})
	if err != nil || redisURL == "" {
		return nil, err
	}
	return db.NewRedisClient(ctx, redisURL)
}

func geminiKey(cfg AIConfig) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
}

func newGenerator(ctx context.Context, cfg AIConfig, logger *zap.Logger) (ai.Generator, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("ai is not enabled in config")
	}

	apiKey, err := geminiKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	opts := []gemini.Option{gemini.WithLogger(logger), gemini.WithJSONResponse()}
	if cfg.Gemini.MaxRetries > 0 {
		opts = append(opts, gemini.WithMaxRetries(cfg.Gemini.MaxRetries))
	}
	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, opts...)
}

// newRecruiterGenerator returns a generator grounded on google search, or nil.
func newRecruiterGenerator(ctx context.Context, cfg AIConfig, logger *zap.Logger) ai.Generator {
	if !cfg.Enabled {
		return nil
	}
	apiKey, err := geminiKey(cfg)
	if err != nil {
		return nil
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model,
		gemini.WithLogger(logger),
		gemini.WithGoogleSearch(),
		gemini.WithTemperature(0.2),
	)
	if err != nil {
		logger.Warn("recruiter model disabled", zap.Error(err))
		return nil
	}
	return generator
}

func newFetcher(cfg FetchConfig, rdb *redis.Client, logger *zap.Logger) fetch.Fetcher {
	opts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.Browser {
		opts = append(opts, fetch.WithRenderer(fetch.NewBrowser(cfg.BrowserTimeout, logger)))
	}

	var fetcher fetch.Fetcher = fetch.NewHTTP(cfg.Timeout, opts...)
	if rdb != nil {
		fetcher = fetch.NewCached(fetcher, rdb, cfg.CacheTTL, logger)
	}
	return fetcher
}

// newRegistry registers every enabled connector. The web search client is
// returned for the recruiter lookup as well.
func newRegistry(ctx context.Context, cfg SourcesConfig, logger *zap.Logger) (*connector.Registry, *sources.WebSearch, error) {
	registry := connector.NewRegistry()

	register := func(name string, c sources.Config, build func(sources.Config) connector.Connector, regions ...connector.Region) {
		if !c.Enabled {
			return
		}
		c = withEnvKey(name, c)
		registry.Register(build(c), regions...)
	}

	register(sources.AdzunaName, cfg.Adzuna, func(c sources.Config) connector.Connector { return sources.NewAdzuna(c, nil, logger) })
	register(sources.JSearchName, cfg.JSearch, func(c sources.Config) connector.Connector { return sources.NewJSearch(c, nil, logger) })
	register(sources.JoobleName, cfg.Jooble, func(c sources.Config) connector.Connector { return sources.NewJooble(c, nil, logger) })
	register(sources.FindWorkName, cfg.FindWork, func(c sources.Config) connector.Connector { return sources.NewFindWork(c, nil, logger) })
	register(sources.IndeedName, cfg.Indeed, func(c sources.Config) connector.Connector { return sources.NewIndeed(c, nil, logger) })
	register(sources.JobBankName, cfg.JobBank, func(c sources.Config) connector.Connector { return sources.NewJobBank(c, nil, logger) },
		connector.RegionAmericas)

	var search *sources.WebSearch
	if google := withEnvKey(sources.GoogleName, cfg.Google); google.PrimaryKey() != "" && google.CX != "" {
		ws, err := sources.NewWebSearch(ctx, google.PrimaryKey(), google.CX)
		if err != nil {
			return nil, nil, err
		}
		search = ws
		if google.Enabled {
			registry.Register(sources.NewGoogle(ws, google, logger))
		}
	}

	if cfg.Headhunter.Enabled {
		registry.Register(headhunter.New(cfg.Headhunter, nil, logger), connector.RegionCIS)
	}

	if registry.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: enable at least one entry under sources", connector.ErrNoConnectors)
	}

	logger.Info("connectors registered", zap.Strings("connectors", registry.Names()))
	return registry, search, nil
}

// withEnvKey reads JOB_HARVESTER_<SOURCE>_KEY when the config carries no key.
func withEnvKey(name string, c sources.Config) sources.Config {
	if c.PrimaryKey() != "" {
		return c
	}
	key, err := secrets.Optional(secrets.Source{
		Name: name + " api key",
		Env:  envPrefix + "_" + strings.ToUpper(name) + "_KEY",
	})
	if err == nil && key != "" {
		c.Keys = append([]string{key}, c.Keys...)
	}
	return c
}

// searcherOrNil keeps a nil *WebSearch from turning into a non-nil interface.
func searcherOrNil(ws *sources.WebSearch) recruiters.Searcher {
	if ws == nil {
		return nil
	}
	return ws
}
