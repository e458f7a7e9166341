package s3client

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"gar-loader/config"
)

// Внешнее хранилище архивов выгрузок. Включается флагом S3.Enabled,
// при выключенном хранилище демону достаточно локального диска
type Provider interface {
	MakeBucket(ctx context.Context) error
	UploadArchive(ctx context.Context, objectName, filePath string) error
	RemoveArchive(ctx context.Context, objectName string) error
}

var Client Provider

type s3client struct {
	minioClient *minio.Client
}

func NewClient() (Provider, error) {
	minioClient, err := minio.New(config.Conf.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Conf.S3.AccessKeyID, config.Conf.S3.SecretAccessKey, ""),
		Secure: *config.Conf.S3.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &s3client{minioClient: minioClient}, nil
}

func (s s3client) MakeBucket(ctx context.Context) error {
	bucketName := config.Conf.S3.BucketName
	location := "us-east-1"
	exists, err := s.minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
	if err != nil {
		return err
	}
	return nil
}

func (s s3client) UploadArchive(ctx context.Context, objectName, filePath string) error {
	_, err := s.minioClient.FPutObject(ctx, config.Conf.S3.BucketName, objectName, filePath,
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return errors.Wrap(err, "ошибка загрузки архива в S3")
	}
	return nil
}

func (s s3client) RemoveArchive(ctx context.Context, objectName string) error {
	err := s.minioClient.RemoveObject(ctx, config.Conf.S3.BucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrap(err, "ошибка удаления архива из S3")
	}
	return nil
}
