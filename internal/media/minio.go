package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string // host:port
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL overrides the "<endpoint>/<bucket>" prefix of public URLs,
	// e.g. when a CDN or reverse proxy fronts the bucket.
	PublicBaseURL string
}

// MinioStore implements Store on MinIO or any S3-compatible service.
type MinioStore struct {
	client *minio.Client
	bucket string
	base   string
}

// readOnlyPolicy lets anonymous clients GET objects, so listing pages can
// embed image URLs directly.
const readOnlyPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// NewMinioStore connects to the object store, ensures the bucket exists, and
// makes its objects publicly readable.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Info().Str("bucket", opts.Bucket).Msg("media bucket created")
	}
	if err := client.SetBucketPolicy(ctx, opts.Bucket, fmt.Sprintf(readOnlyPolicy, opts.Bucket)); err != nil {
		// Buckets served through a proxy may not need (or allow) a policy.
		log.Warn().Err(err).Str("bucket", opts.Bucket).Msg("could not set public-read bucket policy")
	}

	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		base = client.EndpointURL().String() + "/" + opts.Bucket
	}
	return &MinioStore{client: client, bucket: opts.Bucket, base: base}, nil
}

// Put uploads an object.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PublicURL returns "<base>/<key>".
func (m *MinioStore) PublicURL(key string) string { return m.base + "/" + key }

// KeyFromURL implements Store.
func (m *MinioStore) KeyFromURL(url string) (string, bool) { return KeyFromURL(m.base, url) }

// Delete removes an object.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
