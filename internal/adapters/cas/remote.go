package cas

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

const defaultRegion = "us-east-1"

// remoteTier shares entries through an S3-compatible bucket. Objects use the
// same encoding as the disk tier.
type remoteTier struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

func newRemoteTier(cfg domain.RemoteCacheConfig) (*remoteTier, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, zerr.With(zerr.New("remote cache needs an endpoint and a bucket"), "endpoint", endpoint)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: region,
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "endpoint", endpoint)
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &remoteTier{client: client, bucket: bucket, region: region, prefix: prefix}, nil
}

func (r *remoteTier) objectKey(key domain.CacheKey) string {
	return r.prefix + key.Hex() + domain.EntryFileExt
}

func (r *remoteTier) ensureBucket(ctx context.Context) error {
	r.initOnce.Do(func() {
		exists, err := r.client.BucketExists(ctx, r.bucket)
		if err != nil {
			r.initErr = err
			return
		}
		if exists {
			return
		}
		r.initErr = r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: r.region})
	})
	if r.initErr != nil {
		return zerr.With(zerr.Wrap(r.initErr, domain.ErrRemoteCacheFailed.Error()), "bucket", r.bucket)
	}
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// get returns nil, nil when the object does not exist.
func (r *remoteTier) get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}
	name := r.objectKey(key)
	obj, err := r.client.GetObject(ctx, r.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "object", name)
	}
	defer obj.Close() //nolint:errcheck // Read-only object

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "object", name)
	}
	e, err := Decode(data, key)
	if err != nil {
		return nil, zerr.With(err, "object", name)
	}
	return e, nil
}

// put uploads e unless an object already exists under its key.
func (r *remoteTier) put(ctx context.Context, e *domain.CacheEntry) error {
	if err := r.ensureBucket(ctx); err != nil {
		return err
	}
	name := r.objectKey(e.Key)
	if _, err := r.client.StatObject(ctx, r.bucket, name, minio.StatObjectOptions{}); err == nil {
		return nil
	} else if !isNotFound(err) {
		return zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "object", name)
	}

	data, err := Encode(e)
	if err != nil {
		return err
	}
	_, err = r.client.PutObject(ctx, r.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/zstd",
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "object", name)
	}
	return nil
}

func (r *remoteTier) remove(ctx context.Context, key domain.CacheKey) error {
	if err := r.ensureBucket(ctx); err != nil {
		return err
	}
	name := r.objectKey(key)
	if err := r.client.RemoveObject(ctx, r.bucket, name, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "object", name)
	}
	return nil
}
