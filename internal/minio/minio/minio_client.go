package minio

import (
	"context"
	"fmt"
	"io"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/not-nullexception/team-classifier/internal/minio"
	"github.com/rs/zerolog"
)

type MinioClient struct {
	client     *minioLib.Client
	bucketName string
	logger     zerolog.Logger
}

func NewClient(ctx context.Context, cfg *config.MinIOConfig) (minio.Client, error) {
	log := logger.GetLogger("minio-client")

	// Initialize MinIO client
	client, err := minioLib.New(cfg.Endpoint, &minioLib.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.SSL,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking if bucket exists: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minioLib.MakeBucketOptions{Region: cfg.Location})
		if err != nil {
			return nil, fmt.Errorf("error creating bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("Bucket created")
	} else {
		log.Info().Str("bucket", cfg.Bucket).Msg("Bucket already exists")
	}

	return &MinioClient{
		client:     client,
		bucketName: cfg.Bucket,
		logger:     log,
	}, nil
}

// UploadObject stores an object in the results bucket
func (m *MinioClient) UploadObject(ctx context.Context, reader io.Reader, size int64, objectName string, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, objectName, reader, size,
		minioLib.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("error uploading object: %w", err)
	}

	m.logger.Debug().Str("object", objectName).Msg("Object uploaded successfully")
	return nil
}

// Close closes the MinIO client connection
func (m *MinioClient) Close() error {
	return nil
}
