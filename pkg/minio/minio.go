package minio

import (
	"context"
	"time"

	"naano-tracking/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient))

// registerClient returns nil when no endpoint is configured; consumers treat
// object storage as optional.
func registerClient(c *config.Config) (*minio.Client, error) {
	if c.Minio.Endpoint == "" {
		zap.L().Info("minio not configured")
		return nil, nil
	}

	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		zap.L().Warn("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		return client, nil
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			zap.L().Warn("failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		}
	}

	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return client, nil
}
