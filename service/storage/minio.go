package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"sync"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/service/config"
)

type minioService struct {
	client *miniogo.Client
	bucket string
	prefix string

	once      sync.Once
	bucketErr error
}

func NewMinio(params config.StorageParameters) (IService, error) {
	client, err := miniogo.New(params.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(params.AccessKey, params.SecretKey, ""),
		Secure: params.UseSSL,
	})
	if err != nil {
		return nil, xerrors.Errorf("create minio client: %w", err)
	}

	return &minioService{
		client: client,
		bucket: params.Bucket,
		prefix: params.Prefix,
	}, nil
}

func (svc *minioService) ensureBucket(ctx context.Context) error {
	svc.once.Do(func() {
		exists, err := svc.client.BucketExists(ctx, svc.bucket)
		if err != nil {
			svc.bucketErr = xerrors.Errorf("check bucket %s: %w", svc.bucket, err)
			return
		}
		if !exists {
			if err := svc.client.MakeBucket(ctx, svc.bucket, miniogo.MakeBucketOptions{}); err != nil {
				svc.bucketErr = xerrors.Errorf("create bucket %s: %w", svc.bucket, err)
			}
		}
	})
	return svc.bucketErr
}

func (svc *minioService) StoreFile(ctx context.Context, key, localPath string) (string, error) {
	if err := svc.ensureBucket(ctx); err != nil {
		return "", err
	}

	objectKey := ObjectKey(svc.prefix, key)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := svc.client.FPutObject(ctx, svc.bucket, objectKey, localPath, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", xerrors.Errorf("upload %s: %w", localPath, err)
	}

	return fmt.Sprintf("s3://%s/%s", svc.bucket, objectKey), nil
}

// ObjectKey joins prefix and key with forward slashes whatever the OS.
func ObjectKey(prefix, key string) string {
	return path.Join(prefix, filepath.ToSlash(key))
}
