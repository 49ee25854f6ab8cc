package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the object-storage chunk backend.
type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// S3Uploader persists chunks to object storage under
// <prefix>/<fileID>/<index>. PutObject to a fixed key is idempotent, so
// retried chunks simply overwrite identical bytes.
type S3Uploader struct {
	client *s3.Client
	cfg    *S3Config
}

func NewS3Uploader(cfg *S3Config) (*S3Uploader, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
		Timeout: 60 * time.Second,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3UploaderWithClient(client, cfg), nil
}

func NewS3UploaderWithClient(client *s3.Client, cfg *S3Config) *S3Uploader {
	return &S3Uploader{client: client, cfg: cfg}
}

func (u *S3Uploader) Upload(ctx context.Context, fileID string, index int, data []byte, chunkHash string) error {
	key := u.chunkKey(fileID, index)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	}

	// chunkHash is a hex sha256; S3 wants the checksum base64 encoded.
	if sum, err := hex.DecodeString(chunkHash); err == nil && len(sum) == 32 {
		input.ChecksumSHA256 = aws.String(base64.StdEncoding.EncodeToString(sum))
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put chunk %s: %w", key, err)
	}

	slog.Debug("chunk upload", "backend", "s3", "bucket", u.cfg.Bucket, "key", key, "size", len(data))
	return nil
}

func (u *S3Uploader) chunkKey(fileID string, index int) string {
	prefix := u.cfg.KeyPrefix
	if prefix == "" {
		prefix = "chunks"
	}
	return fmt.Sprintf("%s/%s/%05d", prefix, fileID, index)
}
