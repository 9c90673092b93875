package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const uploadURLExpiry = 5 * time.Minute

type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type UploadPresigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Config struct {
	Region     string
	Bucket     string
	Endpoint   string
	PublicBase string
	Prefix     string
	MaxBytes   int
}

// S3Store uploads images to a bucket and stores their public URL on the document.
type S3Store struct {
	client  ObjectPutter
	presign UploadPresigner
	cfg     S3Config
	log     *zerolog.Logger
}

func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Store(client ObjectPutter, presign UploadPresigner, cfg S3Config, log *zerolog.Logger) *S3Store {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &S3Store{client: client, presign: presign, cfg: cfg, log: log}
}

func (s *S3Store) objectKey(key string) string {
	return strings.TrimPrefix(s.cfg.Prefix+"/"+key, "/")
}

func (s *S3Store) publicURL(objectKey string) string {
	if s.cfg.PublicBase != "" {
		return strings.TrimRight(s.cfg.PublicBase, "/") + "/" + objectKey
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, objectKey)
}

func (s *S3Store) Save(ctx context.Context, key, dataURL string) (string, error) {
	if isRemote(dataURL) {
		return dataURL, nil
	}
	contentType, data, err := DecodeDataURL(dataURL, s.cfg.MaxBytes)
	if err != nil {
		return "", err
	}
	objectKey := s.objectKey(key)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	s.log.Debug().Str("key", objectKey).Int("bytes", len(data)).Msg("image uploaded")
	return s.publicURL(objectKey), nil
}

// PresignUpload returns a short-lived PUT URL for the key together with the URL
// the object will be readable at once uploaded.
func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (string, string, error) {
	if !strings.HasPrefix(contentType, allowedImagePrefix) {
		return "", "", fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	objectKey := s.objectKey(key)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadURLExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign %s: %w", objectKey, err)
	}
	return req.URL, s.publicURL(objectKey), nil
}
