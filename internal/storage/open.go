package storage

import (
	"fmt"
	"time"

	"github.com/wolfman30/barbershop-client/pkg/logging"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendDynamo = "dynamodb"
)

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	Backend  string
	FilePath string
	Redis    RedisOptions
	Dynamo   DynamoOptions
	Logger   *logging.Logger
}

// DynamoOptions configures the dynamodb backend. The caller builds the
// client so AWS credentials stay out of this package.
type DynamoOptions struct {
	Client DynamoAPI
	Table  string
	TTL    time.Duration
}

// Open returns the configured KV and a close function.
func Open(opts OpenOptions) (KV, func() error, error) {
	noop := func() error { return nil }
	switch opts.Backend {
	case "", BackendFile:
		fs, err := NewFileStore(opts.FilePath, opts.Logger)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case BackendRedis:
		rs := NewRedisStore(opts.Redis)
		return rs, rs.Close, nil
	case BackendDynamo:
		ds, err := NewDynamoStore(opts.Dynamo.Client, opts.Dynamo.Table, opts.Dynamo.TTL)
		if err != nil {
			return nil, noop, err
		}
		return ds, noop, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}
