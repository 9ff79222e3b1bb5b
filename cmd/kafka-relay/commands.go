package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/drblury/kafkarelay/internal/runtime/config"
	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	"github.com/drblury/kafkarelay/internal/runtime/jsoncodec"
	"github.com/drblury/kafkarelay/internal/runtime/logging"
	"github.com/drblury/kafkarelay/internal/runtime/pipeline"
	"github.com/drblury/kafkarelay/internal/runtime/relay"
	"github.com/drblury/kafkarelay/internal/runtime/template"
	"github.com/drblury/kafkarelay/secrets"
	_ "github.com/drblury/kafkarelay/secrets/backends"
)

const shutdownTimeout = 5 * time.Second

// Swapped in tests.
var (
	buildResolver = secrets.Build
	runPipeline   = pipeline.Run
)

type options struct {
	cfg        *config.Config
	configPath string
}

// load applies the config file, then re-applies every flag given on the
// command line so flags win over the file.
func (o *options) load(flags *pflag.FlagSet) error {
	if o.configPath == "" {
		return nil
	}

	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		if f.Name != "config" {
			changed[f.Name] = f.Value.String()
		}
	})

	if err := config.LoadFile(o.configPath, o.cfg); err != nil {
		return err
	}
	for name, v := range changed {
		if err := flags.Set(name, v); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{cfg: config.Default()}

	root := &cobra.Command{
		Use:           "kafka-relay",
		Short:         "Relay every record of a Kafka topic to another topic",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.Flags())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	fs := root.PersistentFlags()
	fs.StringVar(&opts.configPath, "config", "", "TOML configuration file; flags override its values")
	bindFlags(fs, opts.cfg)

	root.AddCommand(
		newRunCommand(opts, stderr),
		newValidateCommand(opts, stdout),
		newDescribeCommand(stdout),
	)
	return root
}

func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	src, dst := &cfg.Source, &cfg.Destination

	fs.StringVar(&src.BootstrapServerAndTopic, "readBootstrapServerAndTopic", src.BootstrapServerAndTopic, "source <servers>;<topic>")
	fs.StringVar(&src.AuthenticationMode, "kafkaReadAuthenticationMode", src.AuthenticationMode, "source authentication mode (SASL_PLAIN or SSL)")
	fs.StringVar(&src.UsernameSecretID, "kafkaReadUsernameSecretId", src.UsernameSecretID, "secret holding the source SASL username")
	fs.StringVar(&src.PasswordSecretID, "kafkaReadPasswordSecretId", src.PasswordSecretID, "secret holding the source SASL password")
	fs.StringVar(&src.TruststoreLocation, "sourceTruststoreLocation", src.TruststoreLocation, "source truststore file")
	fs.StringVar(&src.TruststorePasswordSecretID, "sourceTruststorePasswordSecretId", src.TruststorePasswordSecretID, "secret holding the source truststore password")
	fs.StringVar(&src.KeystoreLocation, "sourceKeystoreLocation", src.KeystoreLocation, "source keystore file")
	fs.StringVar(&src.KeystorePasswordSecretID, "sourceKeystorePasswordSecretId", src.KeystorePasswordSecretID, "secret holding the source keystore password")
	fs.StringVar(&src.KeyPasswordSecretID, "sourceKeyPasswordSecretId", src.KeyPasswordSecretID, "secret holding the source key password")

	fs.StringVar(&dst.BootstrapServerAndTopic, "writeBootstrapServerAndTopic", dst.BootstrapServerAndTopic, "destination <servers>;<topic>")
	fs.StringVar(&dst.AuthenticationMode, "kafkaWriteAuthenticationMethod", dst.AuthenticationMode, "destination authentication mode (SASL_PLAIN or SSL)")
	fs.StringVar(&dst.UsernameSecretID, "kafkaWriteUsernameSecretId", dst.UsernameSecretID, "secret holding the destination SASL username")
	fs.StringVar(&dst.PasswordSecretID, "kafkaWritePasswordSecretId", dst.PasswordSecretID, "secret holding the destination SASL password")
	fs.StringVar(&dst.TruststoreLocation, "kafkaWriteTruststoreLocation", dst.TruststoreLocation, "destination truststore file")
	fs.StringVar(&dst.TruststorePasswordSecretID, "destinationTruststorePasswordSecretId", dst.TruststorePasswordSecretID, "secret holding the destination truststore password")
	fs.StringVar(&dst.KeystoreLocation, "kafkaWriteKeystoreLocation", dst.KeystoreLocation, "destination keystore file")
	fs.StringVar(&dst.KeystorePasswordSecretID, "kafkaWriteKeystorePasswordSecretId", dst.KeystorePasswordSecretID, "secret holding the destination keystore password")
	fs.StringVar(&dst.KeyPasswordSecretID, "kafkaWriteKeyPasswordSecretId", dst.KeyPasswordSecretID, "secret holding the destination key password")

	fs.BoolVar(&cfg.CommitOffsets, "enableCommitOffsets", cfg.CommitOffsets, "commit source offsets once records were written")
	fs.StringVar(&cfg.ConsumerGroup, "consumerGroup", cfg.ConsumerGroup, "consumer group used when committing offsets")
	fs.StringVar(&cfg.InitialOffset, "initialOffset", cfg.InitialOffset, "where to start without a committed offset (earliest or latest)")
	fs.StringVar(&cfg.ClientID, "clientId", cfg.ClientID, "Kafka client id (default kafkarelay-<ULID>)")
	fs.StringVar(&cfg.KafkaVersion, "kafkaVersion", cfg.KafkaVersion, "Kafka protocol version")
	fs.IntVar(&cfg.ProducerRetries, "producerRetries", cfg.ProducerRetries, "destination publish retries")
	fs.DurationVar(&cfg.ConnectTimeout, "connectTimeout", cfg.ConnectTimeout, "broker dial timeout")
	fs.DurationVar(&cfg.StartTimeout, "startTimeout", cfg.StartTimeout, "how long the relay may take to start")

	fs.StringVar(&cfg.SecretBackend, "secretBackend", cfg.SecretBackend, "secret backend (env, file or aws)")
	fs.StringVar(&cfg.SecretEnvPrefix, "secretEnvPrefix", cfg.SecretEnvPrefix, "prefix for the env secret backend")
	fs.StringVar(&cfg.SecretDir, "secretDir", cfg.SecretDir, "directory for the file secret backend")
	fs.DurationVar(&cfg.SecretTimeout, "secretTimeout", cfg.SecretTimeout, "timeout of each secret lookup")
	fs.StringVar(&cfg.AWSRegion, "awsRegion", cfg.AWSRegion, "AWS region for the aws secret backend")
	fs.StringVar(&cfg.AWSEndpoint, "awsEndpoint", cfg.AWSEndpoint, "custom AWS endpoint")

	fs.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "serve Prometheus metrics and relay stats")
	fs.IntVar(&cfg.MetricsPort, "metricsPort", cfg.MetricsPort, "port for /metrics and /stats")
	fs.StringVar(&cfg.LogLevel, "logLevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "include Kafka client logs at debug level")
}

func newRunCommand(opts *options, logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay and block until it stops or is interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), opts.cfg, logOut)
		},
	}
}

func runRelay(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	if err := config.ValidateConfig(cfg); err != nil {
		return errspkg.NewConfigValidationError(err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.NewSlogServiceLogger(logging.NewJSONLogger(logOut, level))
	if cfg.Verbose {
		sarama.Logger = logging.NewSaramaLogger(logger)
	}

	resolver, err := buildResolver(ctx, cfg, logging.NewWatermillAdapter(logger))
	if err != nil {
		return fmt.Errorf("secret backend: %w", err)
	}

	var (
		registerer prometheus.Registerer
		registry   *prometheus.Registry
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = registry
	}

	engine, err := relay.NewWatermillEngine(logger, relay.EngineConfig{
		Registerer:   registerer,
		StartTimeout: cfg.StartTimeout,
	})
	if err != nil {
		return err
	}

	h, err := runPipeline(ctx, cfg, pipeline.Deps{Resolver: resolver, Engine: engine, Logger: logger})
	if err != nil {
		return err
	}

	if registry != nil {
		srv := newHTTPServer(cfg.MetricsPort, registry, h)
		go func() {
			logger.Info("Starting HTTP server", logging.LogFields{"address": srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", err, logging.LogFields{"address": srv.Addr})
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down relay", logging.LogFields{"relay": h.Name()})
	case <-h.Done():
	}

	closeErr := h.Close()
	stats := h.Stats()
	logger.Info("Relay stopped", logging.LogFields{
		"relay":   stats.Name,
		"relayed": stats.Relayed,
		"failed":  stats.Failed,
	})
	if err := h.Err(); err != nil {
		return fmt.Errorf("relay %s stopped: %w", h.Name(), err)
	}
	return closeErr
}

func newHTTPServer(port int, gatherer prometheus.Gatherer, h relay.Handle) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = jsoncodec.Encode(w, h.Stats())
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type validationReport struct {
	Source                    string `json:"source"`
	Destination               string `json:"destination"`
	SourceAuthentication      string `json:"sourceAuthentication"`
	DestinationAuthentication string `json:"destinationAuthentication"`
	CommitOffsets             bool   `json:"commitOffsets"`
}

func newValidateCommand(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the relay configuration without resolving secrets or contacting brokers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.ValidateConfig(opts.cfg); err != nil {
				return errspkg.NewConfigValidationError(err)
			}
			spec, err := pipeline.Build(opts.cfg)
			if err != nil {
				return err
			}
			return jsoncodec.EncodeIndent(out, validationReport{
				Source:                    spec.Source().String(),
				Destination:               spec.Destination().String(),
				SourceAuthentication:      string(spec.SourceCredentials().Mode()),
				DestinationAuthentication: string(spec.DestinationCredentials().Mode()),
				CommitOffsets:             spec.CommitOffsets(),
			})
		},
	}
}

func newDescribeCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [template]",
		Short: "Print template metadata as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := template.KafkaToKafkaName
			if len(args) == 1 {
				name = args[0]
			}
			meta, ok := template.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown template %q, known templates: %v", name, template.Names())
			}
			return jsoncodec.EncodeIndent(out, meta)
		},
	}
}
