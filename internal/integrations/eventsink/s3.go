// Package eventsink archives authentication events outside the keyed store.
package eventsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/models"
)

// API is the subset of the S3 client used by the archive
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes one JSON object per authentication event
type S3Archive struct {
	api    API
	bucket string
}

// NewS3Archive creates an archive writing to bucket
func NewS3Archive(api API, bucket string) *S3Archive {
	return &S3Archive{api: api, bucket: bucket}
}

// NewS3Client creates an S3 client from the auth event configuration
func NewS3Client(ctx context.Context, cfg config.AuthEventsConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// ObjectKey returns auth-events/YYYY/MM/DD/<id>.json for the event.
func ObjectKey(event *models.AuthEvent) string {
	return fmt.Sprintf("auth-events/%s/%s.json", event.CreatedAt.UTC().Format("2006/01/02"), event.EventID)
}

// Archive stores the event. Objects are create-only.
func (a *S3Archive) Archive(ctx context.Context, event *models.AuthEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(event)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return fmt.Errorf("archive auth event %s: %w", event.EventID, err)
	}
	return nil
}
