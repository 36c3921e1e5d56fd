package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig locates the document in S3-compatible storage.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Key       string
}

// ObjectStore keeps the document as one object. A PutObject replaces the
// object as a whole.
type ObjectStore struct {
	client *minio.Client
	bucket string
	object string
}

func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket, object: objectName(cfg.Key)}, nil
}

func objectName(key string) string {
	if key == "" {
		key = DefaultDocumentKey
	}
	return key + "/commands.json"
}

func (s *ObjectStore) Load(ctx context.Context) (AppDocument, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return AppDocument{}, s.loadError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return AppDocument{}, s.loadError(err)
	}
	return Decode(data)
}

// loadError tells a missing object apart from an unreachable server.
func (s *ObjectStore) loadError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return unavailable("%s/%s does not exist", s.bucket, s.object)
	}
	return readFailed("get %s/%s: %v", s.bucket, s.object, err)
}

func (s *ObjectStore) Save(ctx context.Context, doc AppDocument) error {
	payload, err := Encode(doc)
	if err != nil {
		return writeFailed("%v", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return writeFailed("put %s/%s: %v", s.bucket, s.object, err)
	}
	return nil
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
