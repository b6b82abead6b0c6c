package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/z-mio/parsehub"
	"github.com/z-mio/parsehub/adapters"
	"github.com/z-mio/parsehub/async"
	"github.com/z-mio/parsehub/internal/history"
	"github.com/z-mio/parsehub/internal/redirectcache"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = parsehub.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "parsehub",
		Usage: "resolve share links to media posts and download their media",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "platforms",
				Usage: "list supported platforms",
				Action: func(c *cli.Context) error {
					registry := adapters.DefaultRegistry()
					for _, info := range registry.List() {
						fmt.Printf("%s (%s): %v\n", info.Name, info.ID, info.SupportedTypes)
					}
					return nil
				},
			},
			{
				Name:      "parse",
				Usage:     "resolve share text and show the parsed post",
				ArgsUsage: "TEXT",
				Action: func(c *cli.Context) error {
					return runParse(ctx, c)
				},
			},
			{
				Name:      "download",
				Usage:     "resolve share text and download its media",
				ArgsUsage: "TEXT",
				Action: func(c *cli.Context) error {
					return runDownload(ctx, c)
				},
			},
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		if err = <-result; err != nil {
			logger.Fatal(err.Error())
		}
	}
}

type appConfig struct {
	SaveDir       string
	Proxy         string
	UserAgent     string
	Headers       map[string]string
	HistoryDB     string
	RedirectCache string
}

func loadConfig(path string) (appConfig, error) {
	v := viper.New()
	v.SetDefault("save_dir", "downloads")
	v.SetEnvPrefix("parsehub")
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return appConfig{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return appConfig{
		SaveDir:       v.GetString("save_dir"),
		Proxy:         v.GetString("proxy"),
		UserAgent:     v.GetString("user_agent"),
		Headers:       v.GetStringMapString("headers"),
		HistoryDB:     v.GetString("history_db"),
		RedirectCache: v.GetString("redirect_cache"),
	}, nil
}

func newHub(cfg appConfig) (*parsehub.Hub, func()) {
	parseCfg := parsehub.ParseConfig{
		UserAgent: cfg.UserAgent,
		Proxy:     cfg.Proxy,
	}
	cleanup := func() {}
	if cfg.RedirectCache != "" {
		if cache, err := redirectcache.Open(cfg.RedirectCache); err != nil {
			zap.S().Warnf("redirect cache unavailable: %v", err)
		} else {
			parseCfg.RedirectCache = cache
			cleanup = func() { _ = cache.Close() }
		}
	}
	return parsehub.NewHub(adapters.DefaultRegistry(), parseCfg), cleanup
}

func runParse(ctx context.Context, c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	hub, cleanup := newHub(cfg)
	defer cleanup()

	result, err := hub.Parse(ctx, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("platform: %s\nkind: %s\ntitle: %s\nurl: %s\nmedia: %d item(s)\n",
		result.Platform, result.Kind, result.Title, result.RawURL, len(result.Media))
	for i, ref := range result.Media {
		fmt.Printf("  %d. [%s] %s\n", i, ref.Kind, ref.URL)
	}
	return nil
}

func runDownload(ctx context.Context, c *cli.Context) error {
	logger := parsehub.Logger(ctx).Sugar()
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	hub, cleanup := newHub(cfg)
	defer cleanup()

	result, err := hub.Parse(ctx, c.Args().First())
	if err != nil {
		return err
	}
	logger.Infof("Parsed %s post %q with %d media item(s)", result.Platform, result.Title, len(result.Media))

	var opts []parsehub.DownloaderOption
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB, parsehub.Logger(ctx))
		if err != nil {
			logger.Warnf("download history unavailable: %v", err)
		} else {
			defer store.Close()
			opts = append(opts, parsehub.WithHistory(store))
		}
	}

	downloader, err := parsehub.NewDownloader(parsehub.DownloadConfig{
		SaveDir:   cfg.SaveDir,
		Proxy:     cfg.Proxy,
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
	}, opts...)
	if err != nil {
		return err
	}

	download, err := downloader.Download(ctx, result, parsehub.WithProgress(newProgressReporter(logger)))
	if err != nil {
		return err
	}
	logger.Infof("Downloaded %d file(s) into %s", len(download.Files), download.OutputDir)
	return nil
}

// progressState is diffed between callbacks for debug logging.
type progressState struct {
	Current int64
	Total   int64
	Unit    string
}

func newProgressReporter(logger *zap.SugaredLogger) parsehub.ProgressFunc {
	var bar *progressbar.ProgressBar
	var state progressState
	return func(current, total int64, unit parsehub.ProgressUnit) {
		newState := progressState{Current: current, Total: total, Unit: string(unit)}
		if changes, err := diff.Diff(state, newState); err == nil {
			for _, change := range changes {
				logger.Debugf("progress %v: %v -> %v", change.Path, change.From, change.To)
			}
		}
		state = newState

		if bar == nil {
			if unit == parsehub.ProgressBytes {
				bar = progressbar.DefaultBytes(total, "downloading")
			} else {
				bar = progressbar.Default(total, "downloading")
			}
		}
		if bar.GetMax64() != total {
			bar.ChangeMax64(total)
		}
		_ = bar.Set64(current)
	}
}
