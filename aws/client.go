package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/rs/zerolog/log"
)

// Client uploads JSON snapshots to one S3 bucket.
type Client struct {
	bucket   string
	region   string
	uploader s3manageriface.UploaderAPI
}

func NewClient(region, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, errors.New("aws: bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("aws: create session: %w", err)
	}

	log.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("AWS session created successfully")

	return newClient(region, bucket, s3manager.NewUploader(sess)), nil
}

func newClient(region, bucket string, uploader s3manageriface.UploaderAPI) *Client {
	return &Client{bucket: bucket, region: region, uploader: uploader}
}

// UploadSnapshot stores v as JSON under key and returns the object location.
func (c *Client) UploadSnapshot(ctx context.Context, key string, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("aws: encode snapshot: %w", err)
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Int("content_size", len(body)).
		Msg("Starting S3 upload")

	result, err := c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("bucket", c.bucket).
			Str("region", c.region).
			Str("key", key).
			Msg("S3 upload failed")
		return "", fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}

	log.Info().
		Str("s3_location", result.Location).
		Str("key", key).
		Msg("Snapshot uploaded to S3 successfully")
	return result.Location, nil
}
