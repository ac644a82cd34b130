package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const expiresMetaKey = "expires"

// S3Cache is a Provider storing entries as objects in an S3 bucket.
// The expiry is kept in the object metadata.
type S3Cache struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

func NewS3Cache(bucket, prefix string, client *s3.Client) *S3Cache {
	return &S3Cache{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (s *S3Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	if expired(parseExpires(out.Metadata), time.Now()) {
		return nil, false, s.Purge(ctx, key)
	}
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (s *S3Cache) Put(ctx context.Context, key string, expires time.Time, value []byte) error {
	meta := map[string]string{}
	if !expires.IsZero() {
		meta[expiresMetaKey] = strconv.FormatInt(expires.Unix(), 10)
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    meta,
	})
	return err
}

func (s *S3Cache) Purge(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	return err
}

func parseExpires(meta map[string]string) time.Time {
	val, ok := meta[expiresMetaKey]
	if !ok {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
