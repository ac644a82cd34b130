package cache

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

var ErrUnknownProvider = errors.New("unknown cache provider")

// ProviderConfig selects and configures a Provider.
type ProviderConfig struct {
	// Kind is one of memory (default), sqlite, redis, leveldb or s3.
	Kind string `yaml:"kind"`
	// Path is the sqlite file or leveldb directory.
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
	S3    S3Config    `yaml:"s3"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	PathStyle bool   `yaml:"pathStyle"`
}

// NewProvider builds the configured provider.
func NewProvider(ctx context.Context, config ProviderConfig) (Provider, error) {
	switch config.Kind {
	case "", "memory":
		return NewMemCache(), nil
	case "sqlite":
		provider, err := NewSQLiteCache(config.Path)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "leveldb":
		if config.Path == "" {
			return nil, errors.New("leveldb cache requires a path")
		}
		provider, err := NewLevelDBCache(config.Path)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "redis":
		if config.Redis.Addr == "" {
			return nil, errors.New("redis cache requires an address")
		}
		client := NewRedisClient(config.Redis.Addr, config.Redis.Password, config.Redis.DB)
		return NewRedisCache(client, config.Redis.Prefix), nil
	case "s3":
		provider, err := newS3Provider(ctx, config.S3)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	return nil, errors.Wrapf(ErrUnknownProvider, "kind %q", config.Kind)
}

func newS3Provider(ctx context.Context, config S3Config) (*S3Cache, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3 cache requires a bucket")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = config.PathStyle
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	return NewS3Cache(config.Bucket, config.Prefix, client), nil
}
