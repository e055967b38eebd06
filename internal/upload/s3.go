package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
)

// PutObjectAPI is the single S3 call the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes images straight into a bucket (R2 or any S3-compatible
// store) and hands back their public URL instead of going through /upload.
type S3Uploader struct {
	client        PutObjectAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

func NewS3Uploader(client PutObjectAPI, bucket, prefix, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// NewS3UploaderFromConfig builds the S3 client from static credentials and the upload.s3 config section.
func NewS3UploaderFromConfig(ctx context.Context, cfg config.S3Config, accessKeyID, secretAccessKey string) (*S3Uploader, error) {
	if cfg.Bucket == "" || cfg.PublicBaseURL == "" {
		return nil, errors.New("s3 upload target needs a bucket and a public base URL")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3Uploader(client, cfg.Bucket, cfg.Prefix, cfg.PublicBaseURL), nil
}

// Key names the object for filename: prefix, a fresh uuid and the original extension.
func (u *S3Uploader) Key(filename string) string {
	return u.prefix + uuid.NewString() + strings.ToLower(path.Ext(filename))
}

func (u *S3Uploader) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64, progress api.ProgressFunc) (string, error) {
	key := u.Key(filename)

	body := &countingReader{r: r, total: size, fn: progress}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return "", fmt.Errorf("failed to put %s: %w", key, err)
	}
	return u.publicBaseURL + "/" + key, nil
}

type countingReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    api.ProgressFunc
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if n > 0 {
		c.sent += int64(n)
		if c.fn != nil {
			c.fn(c.sent, c.total)
		}
	}
	return n, err
}
