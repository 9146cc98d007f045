// Package mainconfig turns the env configuration into the runtime pieces the
// binaries share.
package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	appconfig "github.com/wolfman30/barbershop-client/internal/config"
	"github.com/wolfman30/barbershop-client/internal/storage"
)

// LoadAWSConfig applies the region, optional static credentials and the
// LocalStack endpoint override.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewDynamoClient builds a DynamoDB client honoring AWS_ENDPOINT_OVERRIDE.
func NewDynamoClient(awsCfg aws.Config, cfg *appconfig.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// SessionStorageOptions maps the configuration onto storage.OpenOptions.
// AWS is only touched for the dynamodb backend.
func SessionStorageOptions(ctx context.Context, cfg *appconfig.Config) (storage.OpenOptions, error) {
	opts := storage.OpenOptions{
		Backend:  cfg.SessionBackend,
		FilePath: cfg.SessionFile,
		Redis: storage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
		},
	}
	if cfg.SessionBackend != storage.BackendDynamo {
		return opts, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return opts, err
	}
	opts.Dynamo = storage.DynamoOptions{
		Client: NewDynamoClient(awsCfg, cfg),
		Table:  cfg.SessionTable,
		TTL:    cfg.SessionTTL,
	}
	return opts, nil
}
