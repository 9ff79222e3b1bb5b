package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// ReadFile is swapped in tests.
var ReadFile = os.ReadFile

type sideFile struct {
	BootstrapServerAndTopic    string `toml:"bootstrapServerAndTopic"`
	AuthenticationMode         string `toml:"authenticationMode"`
	UsernameSecretID           string `toml:"usernameSecretId"`
	PasswordSecretID           string `toml:"passwordSecretId"`
	TruststoreLocation         string `toml:"truststoreLocation"`
	TruststorePasswordSecretID string `toml:"truststorePasswordSecretId"`
	KeystoreLocation           string `toml:"keystoreLocation"`
	KeystorePasswordSecretID   string `toml:"keystorePasswordSecretId"`
	KeyPasswordSecretID        string `toml:"keyPasswordSecretId"`
}

type secretsFile struct {
	Backend   string `toml:"backend"`
	EnvPrefix string `toml:"envPrefix"`
	Dir       string `toml:"dir"`
	Timeout   string `toml:"timeout"`
}

type awsFile struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"accessKeyId"`
	SecretAccessKey string `toml:"secretAccessKey"`
	Endpoint        string `toml:"endpoint"`
}

type metricsFile struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type logFile struct {
	Level   string `toml:"level"`
	Verbose bool   `toml:"verbose"`
}

// fileConfig is the on-disk shape. Durations are strings such as "30s".
type fileConfig struct {
	Source      sideFile `toml:"source"`
	Destination sideFile `toml:"destination"`

	CommitOffsets   bool   `toml:"commitOffsets"`
	ConsumerGroup   string `toml:"consumerGroup"`
	InitialOffset   string `toml:"initialOffset"`
	ClientID        string `toml:"clientId"`
	KafkaVersion    string `toml:"kafkaVersion"`
	ProducerRetries int    `toml:"producerRetries"`
	ConnectTimeout  string `toml:"connectTimeout"`
	StartTimeout    string `toml:"startTimeout"`

	Secrets secretsFile `toml:"secrets"`
	AWS     awsFile     `toml:"aws"`
	Metrics metricsFile `toml:"metrics"`
	Log     logFile     `toml:"log"`
}

// LoadFile reads a TOML file over cfg. Keys missing from the file keep the
// value cfg already holds.
func LoadFile(path string, cfg *Config) error {
	data, err := ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return Decode(data, cfg)
}

// Decode applies TOML data over cfg.
func Decode(data []byte, cfg *Config) error {
	fc := toFile(cfg)
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return fromFile(fc, cfg)
}

func toFile(c *Config) fileConfig {
	return fileConfig{
		Source:          sideToFile(c.Source),
		Destination:     sideToFile(c.Destination),
		CommitOffsets:   c.CommitOffsets,
		ConsumerGroup:   c.ConsumerGroup,
		InitialOffset:   c.InitialOffset,
		ClientID:        c.ClientID,
		KafkaVersion:    c.KafkaVersion,
		ProducerRetries: c.ProducerRetries,
		ConnectTimeout:  c.ConnectTimeout.String(),
		StartTimeout:    c.StartTimeout.String(),
		Secrets: secretsFile{
			Backend:   c.SecretBackend,
			EnvPrefix: c.SecretEnvPrefix,
			Dir:       c.SecretDir,
			Timeout:   c.SecretTimeout.String(),
		},
		AWS: awsFile{
			Region:          c.AWSRegion,
			AccessKeyID:     c.AWSAccessKeyID,
			SecretAccessKey: c.AWSSecretAccessKey,
			Endpoint:        c.AWSEndpoint,
		},
		Metrics: metricsFile{Enabled: c.MetricsEnabled, Port: c.MetricsPort},
		Log:     logFile{Level: c.LogLevel, Verbose: c.Verbose},
	}
}

func fromFile(fc fileConfig, c *Config) error {
	secretTimeout, err := parseDuration("secrets.timeout", fc.Secrets.Timeout)
	if err != nil {
		return err
	}
	connectTimeout, err := parseDuration("connectTimeout", fc.ConnectTimeout)
	if err != nil {
		return err
	}
	startTimeout, err := parseDuration("startTimeout", fc.StartTimeout)
	if err != nil {
		return err
	}

	*c = Config{
		Source:             sideFromFile(fc.Source),
		Destination:        sideFromFile(fc.Destination),
		CommitOffsets:      fc.CommitOffsets,
		ConsumerGroup:      fc.ConsumerGroup,
		InitialOffset:      fc.InitialOffset,
		ClientID:           fc.ClientID,
		KafkaVersion:       fc.KafkaVersion,
		ProducerRetries:    fc.ProducerRetries,
		SecretBackend:      fc.Secrets.Backend,
		SecretEnvPrefix:    fc.Secrets.EnvPrefix,
		SecretDir:          fc.Secrets.Dir,
		AWSRegion:          fc.AWS.Region,
		AWSAccessKeyID:     fc.AWS.AccessKeyID,
		AWSSecretAccessKey: fc.AWS.SecretAccessKey,
		AWSEndpoint:        fc.AWS.Endpoint,
		SecretTimeout:      secretTimeout,
		ConnectTimeout:     connectTimeout,
		StartTimeout:       startTimeout,
		MetricsEnabled:     fc.Metrics.Enabled,
		MetricsPort:        fc.Metrics.Port,
		LogLevel:           fc.Log.Level,
		Verbose:            fc.Log.Verbose,
	}
	return nil
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("decode config: %s: %w", key, err)
	}
	return d, nil
}

func sideToFile(s Side) sideFile {
	return sideFile(s)
}

func sideFromFile(s sideFile) Side {
	return Side(s)
}
