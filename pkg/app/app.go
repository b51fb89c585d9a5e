// Package app runs command line applications with the shared configuration,
// logging and metrics setup.
package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/token-distributor/pkg/metrics"
)

// ErrUsage is returned when no known command was requested.
var ErrUsage = errors.New("usage")

const metricsShutdownTimeout = 5 * time.Second

// Command is a single subcommand of an application.
type Command struct {
	Name        string
	Description string

	// Run executes the command with the arguments following its name. The
	// context is canceled on interrupt and after the configured timeout.
	Run func(ctx context.Context, config BaseConfig, args []string) error
}

func Run(commands []Command, options ...Option) error {
	o := &opts{
		args:      os.Args[1:],
		logOutput: os.Stderr,
		signals:   []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP},
	}
	for _, option := range options {
		option(o)
	}

	byName := make(map[string]Command, len(commands))
	for _, command := range commands {
		byName[command.Name] = command
	}

	fs := flag.NewFlagSet("app", flag.ContinueOnError)
	fs.SetOutput(o.logOutput)
	configPath := fs.String("config", "config.yaml", "configuration file path")
	fs.Usage = func() {
		printUsage(fs, commands)
	}
	if err := fs.Parse(o.args); err != nil {
		return err
	}

	logger := logrus.StandardLogger().WithField("type", "app")

	config, err := loadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Error("failed to load config")
		return err
	}

	// todo: Better abstraction so we're not directly tied to NR
	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Error("error connecting to new relic")
			return err
		}

		metricsProvider = nr
		defer nr.Shutdown(metricsShutdownTimeout)
	}

	configureLogger(config, metricsProvider, o)

	if fs.NArg() == 0 {
		fs.Usage()
		return ErrUsage
	}

	command, ok := byName[fs.Arg(0)]
	if !ok {
		logger.WithField("command", fs.Arg(0)).Error("unknown command")
		fs.Usage()
		return ErrUsage
	}

	ctx, stop := context.WithCancel(context.Background())
	if len(o.signals) > 0 {
		ctx, stop = signal.NotifyContext(ctx, o.signals...)
	}
	defer stop()

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	ctx, end := metrics.WithApplication(ctx, metricsProvider, fmt.Sprintf("%s/%s", config.AppName, command.Name))
	defer end()

	if err := command.Run(ctx, config, fs.Args()[1:]); err != nil {
		logger.WithError(err).WithField("command", command.Name).Error("command failed")
		return err
	}
	return nil
}

func loadConfig(configPath string) (BaseConfig, error) {
	v := newViper()

	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to search
	// for a default config file because one hasn't been explicitly set. That is,
	// if we explicitly set a config file, and it does not exist, viper will not
	// return a ConfigFileNotFoundError, so we do it ourselves.
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := v.ReadInConfig()
	_, isConfigNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !isConfigNotFound {
		return BaseConfig{}, errors.Wrap(err, "failed to read config")
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, nil
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application, o *opts) {
	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if strings.EqualFold(config.LogFormat, "json") {
		formatter = &logrus.JSONFormatter{}
	}

	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewLogFormatter(metricsProvider, formatter))
	} else {
		logrus.SetFormatter(formatter)
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(o.logOutput)
}

func printUsage(fs *flag.FlagSet, commands []Command) {
	w := fs.Output()

	fmt.Fprintln(w, "Usage: [-config path] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	sorted := append([]Command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	for _, command := range sorted {
		fmt.Fprintf(w, "  %-16s %s\n", command.Name, command.Description)
	}

	fmt.Fprintln(w)
	fs.PrintDefaults()
}
