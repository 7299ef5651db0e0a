// Package distribution wraps the S3 bucket backing self-update: presigned
// installer downloads and an optional published config patch. It is the Go
// analogue of the distribution Lambda's generate_presigned_url and landing
// page logic.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const configPatchKey = "config/patch.json"

// ErrNoConfigPatch is returned by FetchConfigPatch when the bucket has no
// published patch object.
var ErrNoConfigPatch = errors.New("no config patch published")

type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func New(cfg aws.Config, bucket string) *Store {
	client := s3.NewFromConfig(cfg)
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// PresignDownload returns a presigned GET URL for key, valid for ttl.
func (s *Store) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign download url: %w", err)
	}

	return req.URL, nil
}

// FetchConfigPatch returns the raw bytes of the published config patch
// object, or ErrNoConfigPatch if none has been published.
func (s *Store) FetchConfigPatch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(configPatchKey),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, ErrNoConfigPatch
		}
		return nil, fmt.Errorf("get config patch: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read config patch: %w", err)
	}

	return body, nil
}
