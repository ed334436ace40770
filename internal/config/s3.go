package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/vango-dev/navrouter/internal/errors"
)

// maxConfigSize bounds a configuration object fetched from S3.
const maxConfigSize = 1 << 20

// ObjectGetter is the part of the S3 client Load uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type loadOptions struct {
	client     ObjectGetter
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithS3Client sets the client used for s3:// URIs.
// Default: a client built from the default AWS configuration chain.
func WithS3Client(client ObjectGetter) LoadOption {
	return func(o *loadOptions) {
		o.client = client
	}
}

// WithMaxTries bounds S3 fetch attempts.
// Default: 5.
func WithMaxTries(n uint) LoadOption {
	return func(o *loadOptions) {
		o.maxTries = n
	}
}

// WithBackOff sets the retry schedule for S3 fetches.
// Default: exponential, starting at 200ms.
func WithBackOff(fn func() backoff.BackOff) LoadOption {
	return func(o *loadOptions) {
		o.newBackOff = fn
	}
}

func isS3URI(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// parseS3URI splits s3://bucket/key.
func parseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: want s3://bucket/key", uri)
	}
	return bucket, key, nil
}

// fetchS3 downloads the object at uri, retrying transient failures.
func fetchS3(ctx context.Context, uri string, lo loadOptions) ([]byte, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, errors.New("E125").WithDetail(err.Error()).Wrap(err)
	}

	client := lo.client
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.New("E125").WithDetail(err.Error()).Wrap(err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	maxTries := lo.maxTries
	if maxTries == 0 {
		maxTries = 5
	}
	b := defaultBackOff()
	if lo.newBackOff != nil {
		b = lo.newBackOff()
	}

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var noKey *s3types.NoSuchKey
			var noBucket *s3types.NoSuchBucket
			if stderrors.As(err, &noKey) || stderrors.As(err, &noBucket) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer out.Body.Close()

		data, err := io.ReadAll(io.LimitReader(out.Body, maxConfigSize+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxConfigSize {
			return nil, backoff.Permanent(fmt.Errorf("object exceeds %d bytes", maxConfigSize))
		}
		return data, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	if err != nil {
		var noKey *s3types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, errors.New("E121").WithDetail("No configuration at " + uri).Wrap(err)
		}
		return nil, errors.New("E125").WithDetail(uri + ": " + err.Error()).Wrap(err)
	}
	return data, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
