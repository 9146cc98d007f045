package mainconfig

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/barbershop-client/internal/config"
	"github.com/wolfman30/barbershop-client/internal/storage"
)

func TestSessionStorageOptionsSkipsAWSForLocalBackends(t *testing.T) {
	cfg := &appconfig.Config{SessionBackend: storage.BackendRedis, RedisAddr: "cache:6379", RedisDB: 2}
	opts, err := SessionStorageOptions(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Redis.Addr != "cache:6379" || opts.Redis.DB != 2 {
		t.Fatalf("redis options not mapped: %#v", opts.Redis)
	}
	if opts.Dynamo.Client != nil {
		t.Fatalf("expected no dynamodb client for redis backend")
	}
}

func TestSessionStorageOptionsBuildsDynamoClient(t *testing.T) {
	cfg := &appconfig.Config{
		SessionBackend:      storage.BackendDynamo,
		SessionTable:        "sessions",
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	opts, err := SessionStorageOptions(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Dynamo.Client == nil || opts.Dynamo.Table != "sessions" {
		t.Fatalf("dynamodb options not populated: %#v", opts.Dynamo)
	}
}
