// Package aws resolves secrets from AWS Secrets Manager.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/drblury/kafkarelay/secrets"
)

// BackendName is the name used to register this backend.
const BackendName = "aws"

// Client is the subset of the Secrets Manager API the resolver needs.
type Client interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// ClientFactory allows overriding the Secrets Manager client creation for testing.
var ClientFactory = func(cfg aws.Config, optFns ...func(*secretsmanager.Options)) Client {
	return secretsmanager.NewFromConfig(cfg, optFns...)
}

var accessDeniedCodes = map[string]bool{
	"AccessDeniedException":       true,
	"DecryptionFailure":           true,
	"UnrecognizedClientException": true,
}

func init() {
	Register()
}

// Register adds this backend to the default registry.
func Register() {
	secrets.Register(BackendName, Build)
}

// Build creates a Secrets Manager resolver.
func Build(ctx context.Context, cfg secrets.Config, logger watermill.LoggerAdapter) (secrets.Resolver, error) {
	awsCfg, err := createAWSConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using AWS Secrets Manager secret backend", watermill.LogFields{
		"region":          awsCfg.Region,
		"custom_endpoint": cfg.GetAWSEndpoint() != "",
	})

	var optFns []func(*secretsmanager.Options)
	if endpoint := cfg.GetAWSEndpoint(); endpoint != "" {
		optFns = append(optFns, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	return &Resolver{Client: ClientFactory(awsCfg, optFns...)}, nil
}

func createAWSConfig(ctx context.Context, cfg secrets.Config, logger watermill.LoggerAdapter) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if region := cfg.GetAWSRegion(); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	accessKey := cfg.GetAWSAccessKeyID()
	secretKey := cfg.GetAWSSecretAccessKey()
	if accessKey != "" && secretKey != "" {
		logger.Info("Using static AWS credentials from config", watermill.LogFields{})
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, watermill.LogFields{
			"requested_region": cfg.GetAWSRegion(),
		})
		return aws.Config{}, err
	}

	// Ensure region is set even if the loader ignores options
	if region := cfg.GetAWSRegion(); region != "" {
		awsCfg.Region = region
	}
	return awsCfg, nil
}

// Resolver fetches the current version of a secret. Binary secrets are
// returned as their raw bytes.
type Resolver struct {
	Client Client
}

func (r *Resolver) Resolve(ctx context.Context, secretID string) (string, error) {
	out, err := r.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", classify(secretID, err)
	}
	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case out.SecretBinary != nil:
		return string(out.SecretBinary), nil
	default:
		return "", fmt.Errorf("%w: %s has no value", secrets.ErrNotFound, secretID)
	}
}

func classify(secretID string, err error) error {
	var notFound *smtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s: %w", secrets.ErrNotFound, secretID, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && accessDeniedCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %s: %w", secrets.ErrAccessDenied, secretID, err)
	}
	return err
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
