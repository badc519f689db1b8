package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/common"
)

// UploadRegistrar turns a blob already sitting in the bucket into an
// authoritative drive record. HTTPClient implements it.
type UploadRegistrar interface {
	RegisterUpload(ctx context.Context, meta UploadMeta, objectKey string) (*models.Node, error)
}

// S3Config configures the direct-to-bucket transport. Endpoint is the
// cluster's S3-compatible gateway (MinIO and friends), hence path-style
// addressing and static credentials issued per user.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	KeyPrefix string
}

// S3Transport is a Service decorator: metadata operations pass through to
// the wrapped Service, but encrypted blobs go straight to the bucket and are
// then registered with the API. Useful when the deployment exposes the
// storage gateway to clients and the API should not proxy file bytes.
type S3Transport struct {
	Service

	client    *s3.Client
	registrar UploadRegistrar
	bucket    string
	keyPrefix string
}

func NewS3Transport(ctx context.Context, cfg S3Config, api *HTTPClient) (*S3Transport, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Transport{
		Service:   api,
		client:    client,
		registrar: api,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (t *S3Transport) UploadBytes(ctx context.Context, blob []byte, meta UploadMeta, onProgress ProgressFunc) (*models.Node, error) {
	key := t.keyPrefix + uuid.NewString()

	var body io.Reader = bytes.NewReader(blob)
	if onProgress != nil {
		body = &progressReader{r: body, total: int64(len(blob)), onProgress: onProgress}
	}

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(int64(len(blob))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: s3 put: %v", common.ErrNetwork, err)
	}

	// An object whose registration never happens (cancellation, crash) is
	// left for server-side cleanup; the client never assumes a cancelled
	// upload stored no bytes.
	return t.registrar.RegisterUpload(ctx, meta, key)
}
