package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"s3mirror/config"
	"s3mirror/internal/location"
	"s3mirror/internal/mirror"
	"s3mirror/pkg/utils"
)

const commandName = "s3mirror"

// ArgumentError reports invalid command line input.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

type mirrorFlags struct {
	remove         bool
	accessKey      string
	secretKey      string
	configFile     string
	threads        int
	repeatInterval float64
	endpoint       string
	region         string
	noRange        bool
	drainTimeout   time.Duration
	summary        bool
	verbose        bool
}

func newRootCmd(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	flags := &mirrorFlags{}

	cmd := &cobra.Command{
		Use:   commandName + " [flags] <remote-location> <local-destination>",
		Short: "Mirror an object storage prefix into a local directory",
		Long: `s3mirror downloads every object below a remote prefix into a local directory.

The remote location has the form scheme://bucket/prefix. Objects are written to
the destination with the prefix removed from their keys. Partially downloaded
files are resumed, files that already have the remote size are skipped.

Supported schemes are s3, gs and mem. Credentials for s3 are taken from the
command line, then from ACCESS_KEY and SECRET_KEY, then from the credentials
file, and finally from the default AWS credential chain.`,
		Example: `  # Mirror a prefix once with two parallel downloads
  s3mirror s3://backups/db/ /var/backups/db

  # Poll every 5 minutes and delete objects once they are local
  s3mirror --remove -r 5 s3://incoming/ /data/incoming

  # Use an S3 compatible server with explicit keys
  s3mirror --endpoint http://localhost:9000 --accessKey minio --secretAccessKey secret s3://bucket/logs/ ./logs

  # Mirror a Google Cloud Storage prefix with eight threads
  s3mirror -t 8 gs://my-bucket/exports/ ./exports`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return &ArgumentError{Err: err}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(cmd, args, flags, cfg, stdout, stderr)
		},
	}

	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ArgumentError{Err: err}
	})

	f := cmd.Flags()
	f.BoolVar(&flags.remove, "remove", false, "Delete each remote object after it is completely downloaded")
	f.StringVar(&flags.accessKey, "accessKey", "", "Access key for the s3 scheme")
	f.StringVar(&flags.secretKey, "secretAccessKey", "", "Secret access key for the s3 scheme")
	f.StringVar(&flags.configFile, "configFile", "", "Credentials file with accessKey and secretKey entries (default ~/.s3mirror.cfg)")
	f.IntVarP(&flags.threads, "threads", "t", mirror.DefaultThreads, "Number of parallel downloads")
	f.Float64VarP(&flags.repeatInterval, "repeatInterval", "r", 0, "Minutes to wait between passes; 0 runs a single pass")
	f.StringVar(&flags.endpoint, "endpoint", "", "S3 compatible endpoint URL (overrides API_URL)")
	f.StringVar(&flags.region, "region", "", "S3 region (overrides REGION)")
	f.BoolVar(&flags.noRange, "no-range", false, "Never use range requests, stream and skip instead")
	f.DurationVar(&flags.drainTimeout, "drain-timeout", mirror.DefaultDrainTimeout, "Longest wait for the downloads of one pass")
	f.BoolVar(&flags.summary, "summary", false, "Print a JSON summary of every pass to stdout")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// Execute runs the command line with os.Args.
func Execute(cfg *config.Config) error {
	return execute(context.Background(), cfg, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(cfg, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	reportError(cmd, err, stderr)
	return err
}

// ExitCode maps an error returned by Execute to the process exit status.
func ExitCode(err error) int {
	var credErr *config.CredentialError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &credErr):
		return 2
	default:
		return 1
	}
}

func reportError(cmd *cobra.Command, err error, stderr io.Writer) {
	var argErr *ArgumentError
	var locErr *location.MalformedLocationError
	if errors.As(err, &argErr) || errors.As(err, &locErr) {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fmt.Fprint(stderr, cmd.UsageString())
		return
	}

	utils.PrintError(stderr, err, commandName)
}
