package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Config holds object store connection configuration.
// Works against AWS S3 or any S3-compatible endpoint (MinIO, GCS interop).
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	// PublicBaseURL is the prefix for publicly served object URLs.
	// Defaults to the virtual-hosted S3 URL for the bucket.
	PublicBaseURL string
}

// Validate checks required config fields
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("object store bucket is required")
	}
	return nil
}

// Client wraps the S3 API with the narrow surface the services need
type Client struct {
	api    *s3.Client
	config *Config
	logger *slog.Logger
}

// NewClient creates a new object store client. Credentials fall back to
// the SDK default chain when not set explicitly in config.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if config.ForcePathStyle {
				o.UsePathStyle = true
			}
			if config.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.Endpoint)
			}
		},
	}

	client := &Client{
		api:    s3.NewFromConfig(awsCfg, s3Opts...),
		config: config,
		logger: logger,
	}

	logger.Info("Object store client initialized",
		slog.String("bucket", config.Bucket),
		slog.String("endpoint", config.Endpoint),
	)

	return client, nil
}

// Put stores an object under key and returns its public URL
func (c *Client) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		c.logger.Error("Failed to put object",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	c.logger.Debug("Object stored",
		slog.String("key", key),
	)

	return c.ObjectURL(key), nil
}

// Get fetches the full object body for key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return data, nil
}

// Delete removes a single object. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object whose key starts with prefix,
// simulating a folder delete.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0

	var token *string
	for {
		page, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.config.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if err := c.Delete(ctx, aws.ToString(obj.Key)); err != nil {
				return deleted, err
			}
			deleted++
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}

	c.logger.Info("Deleted objects by prefix",
		slog.String("prefix", prefix),
		slog.Int("count", deleted),
	)

	return deleted, nil
}

// CopyPrefix copies every object under oldPrefix to newPrefix. The
// originals stay in place; callers delete the old prefix once their own
// bookkeeping has moved over.
func (c *Client) CopyPrefix(ctx context.Context, oldPrefix, newPrefix string) error {
	var token *string
	for {
		page, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.config.Bucket),
			Prefix:            aws.String(oldPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix %s: %w", oldPrefix, err)
		}

		for _, obj := range page.Contents {
			oldKey := aws.ToString(obj.Key)
			newKey := strings.Replace(oldKey, oldPrefix, newPrefix, 1)

			_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
				Bucket:     aws.String(c.config.Bucket),
				CopySource: aws.String(c.config.Bucket + "/" + oldKey),
				Key:        aws.String(newKey),
			})
			if err != nil {
				return fmt.Errorf("failed to copy object %s: %w", oldKey, err)
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}

	c.logger.Info("Copied object prefix",
		slog.String("old_prefix", oldPrefix),
		slog.String("new_prefix", newPrefix),
	)

	return nil
}

// ObjectURL builds the publicly served URL for key
func (c *Client) ObjectURL(key string) string {
	base := c.config.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.amazonaws.com", c.config.Bucket)
	}
	return strings.TrimRight(base, "/") + "/" + key
}

// HealthCheck verifies the bucket is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("object store health check failed: %w", err)
	}
	return nil
}

// isNotFound reports whether err is an S3 missing-key error
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
