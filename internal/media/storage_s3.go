/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config contains S3-compatible storage settings.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string
	PublicBaseURL   string
	UsePathStyle    bool
}

// s3API is the slice of the S3 client the storage uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Storage implements Storage using S3-compatible object storage.
type S3Storage struct {
	client s3API
	cfg    S3Config
	logger zerolog.Logger
}

// NewS3Storage creates an S3-based storage backend.
func NewS3Storage(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3Storage(client, cfg, logger), nil
}

func newS3Storage(client s3API, cfg S3Config, logger zerolog.Logger) *S3Storage {
	return &S3Storage{client: client, cfg: cfg, logger: logger}
}

// Store uploads a file. Bodies that cannot seek are buffered so the request
// can be signed.
func (st *S3Storage) Store(ctx context.Context, key string, body io.Reader, contentType string) error {
	if _, ok := body.(io.ReadSeeker); !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	_, err := st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(st.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	st.logger.Debug().Str("bucket", st.cfg.Bucket).Str("key", key).Msg("s3 storage: object stored")
	return nil
}

// Delete removes an object.
func (st *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(st.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// URL returns the public URL for an object.
func (st *S3Storage) URL(key string) string {
	key = strings.TrimLeft(key, "/")
	switch {
	case st.cfg.PublicBaseURL != "":
		return strings.TrimRight(st.cfg.PublicBaseURL, "/") + "/" + key
	case st.cfg.Endpoint != "" && st.cfg.UsePathStyle:
		return strings.TrimRight(st.cfg.Endpoint, "/") + "/" + st.cfg.Bucket + "/" + key
	case st.cfg.Endpoint != "":
		return strings.Replace(strings.TrimRight(st.cfg.Endpoint, "/"), "://", "://"+st.cfg.Bucket+".", 1) + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", st.cfg.Bucket, st.cfg.Region, key)
	}
}

// CheckAccess verifies the bucket is reachable with the configured credentials.
func (st *S3Storage) CheckAccess(ctx context.Context) error {
	if _, err := st.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(st.cfg.Bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", st.cfg.Bucket, err)
	}
	return nil
}
