package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"s3mirror/config"
	"s3mirror/internal/location"
	"s3mirror/internal/mirror"
	"s3mirror/internal/models"
	"s3mirror/internal/storage"
	"s3mirror/pkg/utils"
)

func runMirror(cmd *cobra.Command, args []string, flags *mirrorFlags, cfg *config.Config, stdout, stderr io.Writer) error {
	loc, err := location.Parse(args[0])
	if err != nil {
		return err
	}
	destination := args[1]

	if err := flags.validate(); err != nil {
		return err
	}

	logger := newLogger(stderr, flags.verbose)

	settings := config.Config{}
	if cfg != nil {
		settings = *cfg
	}
	if flags.endpoint != "" {
		settings.ApiURL = flags.endpoint
	}
	if flags.region != "" {
		settings.Region = flags.region
	}
	if loc.Scheme == "s3" {
		if err := resolveCredentials(&settings, flags, logger); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("failed to create destination %s: %w", destination, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := storage.Open(ctx, loc, &settings)
	if err != nil {
		return err
	}
	defer client.Close()
	if flags.noRange {
		client = storage.WithoutRanges(client)
	}

	driver := mirror.NewDriver(client, mirror.Options{
		Location:       loc,
		Destination:    destination,
		Threads:        flags.threads,
		RepeatInterval: time.Duration(flags.repeatInterval * float64(time.Minute)),
		DrainTimeout:   flags.drainTimeout,
		Remove:         flags.remove,
	}, logger)

	if flags.summary {
		driver.OnPass = func(result models.PassResult) {
			if err := utils.WriteJSON(stdout, result); err != nil {
				logger.Error("failed to print pass summary", "error", err)
			}
		}
	}

	return driver.Run(ctx)
}

func (f *mirrorFlags) validate() error {
	if (f.accessKey == "") != (f.secretKey == "") {
		return &ArgumentError{Err: errors.New("--accessKey and --secretAccessKey must be given together")}
	}
	if f.threads < 1 {
		return &ArgumentError{Err: fmt.Errorf("--threads must be at least 1, got %d", f.threads)}
	}
	if f.repeatInterval < 0 {
		return &ArgumentError{Err: fmt.Errorf("--repeatInterval must not be negative, got %g", f.repeatInterval)}
	}
	if f.drainTimeout <= 0 {
		return &ArgumentError{Err: fmt.Errorf("--drain-timeout must be positive, got %s", f.drainTimeout)}
	}
	return nil
}

// resolveCredentials fills cfg's key pair from the command line, the
// environment already loaded into cfg, or the credentials file, in that
// order. A missing default credentials file leaves the pair empty so the
// SDK's default chain applies.
func resolveCredentials(cfg *config.Config, flags *mirrorFlags, logger *slog.Logger) error {
	if flags.accessKey != "" {
		cfg.AccessKey = flags.accessKey
		cfg.SecretKey = flags.secretKey
		logger.Debug("using credentials from the command line")
		return nil
	}
	if cfg.HasCredentials() {
		logger.Debug("using credentials from the environment")
		return nil
	}

	path := flags.configFile
	if path == "" {
		path = config.DefaultCredentialsPath()
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no credentials file, using the default credential chain", "path", path)
			return nil
		}
	}

	accessKey, secretKey, err := config.ReadCredentialsFile(path)
	if err != nil {
		return err
	}
	cfg.AccessKey = accessKey
	cfg.SecretKey = secretKey
	logger.Debug("using credentials from file", "path", path)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
