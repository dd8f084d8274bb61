// Package artifact uploads finished run documents to S3-compatible
// storage. Upload is optional and advisory: the CLI logs failures and
// keeps going.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Uploader writes documents under <runID>/<filename> in one bucket.
type Uploader struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// New builds an uploader for cfg.
func New(cfg Config) (*Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket, region: region}, nil
}

// NewFromEnv reads CODEBRIEF_S3_* and returns (nil, nil) when the
// endpoint is unset, meaning upload is disabled.
func NewFromEnv() (*Uploader, error) {
	endpoint := strings.TrimSpace(os.Getenv("CODEBRIEF_S3_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	return New(Config{
		Endpoint:  endpoint,
		Region:    os.Getenv("CODEBRIEF_S3_REGION"),
		AccessKey: os.Getenv("CODEBRIEF_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("CODEBRIEF_S3_SECRET_KEY"),
		Bucket:    os.Getenv("CODEBRIEF_S3_BUCKET"),
		UseSSL:    os.Getenv("CODEBRIEF_S3_SSL") == "true",
	})
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	if u == nil || u.client == nil {
		return fmt.Errorf("uploader is nil")
	}
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
	})
	return u.initErr
}

// Put stores content at <runID>/<filename>.
func (u *Uploader) Put(ctx context.Context, runID, filename string, content []byte) error {
	if u == nil {
		return nil
	}
	runID = strings.TrimSpace(runID)
	filename = strings.TrimSpace(filename)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if filename == "" {
		return fmt.Errorf("filename is required")
	}
	if err := u.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	key := objectKey(runID, filename)
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func objectKey(runID, filename string) string {
	return runID + "/" + strings.TrimLeft(filename, "/")
}
