// Package s3 stores beats in an S3-compatible bucket: AWS S3, Cloudflare R2 or
// MinIO.
//
// Layout mirrors the GCS binding: <prefix>/<category>/ is a zero-byte marker
// and assets live under it. Creation uses If-None-Match: * so a name taken by
// a concurrent writer fails with PreconditionFailed instead of being replaced.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const (
	component         = "storage-s3"
	markerContentType = "application/x-directory"
)

// Options configures the S3 binding.
type Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Backend is an S3 storage backend.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New builds an S3 client. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Backend, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "bucket is required", nil)
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "auto"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "load aws config", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		// R2 and MinIO reject some of the newer default checksum headers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Backend{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		logger: logging.NewComponentLogger(logger, component),
	}, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "s3" }

// EnsureCategory implements storage.Backend.
func (b *Backend) EnsureCategory(ctx context.Context, category string) (storage.CategoryHandle, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return storage.CategoryHandle{}, err
	}
	marker := categoryPrefix(b.prefix, category)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(marker),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String(markerContentType),
		IfNoneMatch: aws.String("*"),
	})
	switch {
	case err == nil:
		b.logger.Info("category provisioned",
			logging.String(logging.FieldCategory, category),
			logging.String("key", marker),
		)
	case errors.Is(classify("ensure_category", "", err), services.ErrAlreadyExists):
	default:
		return storage.CategoryHandle{}, classify("ensure_category", "create category marker", err)
	}
	return storage.CategoryHandle{Category: category, ID: fmt.Sprintf("s3://%s/%s", b.bucket, marker)}, nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, category, name string, payload io.Reader) (storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, name); err != nil {
		return storage.AssetRef{}, err
	}
	if name == "" {
		return storage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "asset name is empty", nil)
	}
	if _, err := b.EnsureCategory(ctx, category); err != nil {
		return storage.AssetRef{}, err
	}
	// The SDK signs the payload, which needs a seekable body.
	data, err := io.ReadAll(payload)
	if err != nil {
		return storage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "read payload", err)
	}
	key := objectKey(b.prefix, category, name)
	contentType := storage.ContentTypeFor(name)
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		classified := classify("put", "upload object", err)
		if errors.Is(classified, services.ErrAlreadyExists) {
			return storage.AssetRef{}, services.Wrap(services.ErrAlreadyExists, component, "put", fmt.Sprintf("%s/%s already stored", category, name), nil)
		}
		return storage.AssetRef{}, classified
	}
	return storage.AssetRef{
		Category:    category,
		Name:        name,
		ID:          key,
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, category string) ([]storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return nil, err
	}
	dir := categoryPrefix(b.prefix, category)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})
	refs := make([]storage.AssetRef, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("list", "list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == dir {
				continue
			}
			name := path.Base(key)
			if name == "" || strings.HasPrefix(name, ".") {
				continue
			}
			refs = append(refs, storage.AssetRef{
				Category:    category,
				Name:        name,
				ID:          key,
				Size:        aws.ToInt64(obj.Size),
				ContentType: storage.ContentTypeFor(name),
				CreatedAt:   aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	return storage.SortRefs(refs), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, ref storage.AssetRef) ([]byte, error) {
	if err := storage.ValidateKey(component, ref.Category, ref.Name); err != nil {
		return nil, err
	}
	key := objectKey(b.prefix, ref.Category, ref.Name)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get", fmt.Sprintf("open %s", key), err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify("get", fmt.Sprintf("read %s", key), err)
	}
	return data, nil
}

func categoryPrefix(prefix, category string) string {
	if prefix == "" {
		return category + "/"
	}
	return path.Join(prefix, category) + "/"
}

func objectKey(prefix, category, name string) string {
	return categoryPrefix(prefix, category) + name
}

func classify(operation, message string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return services.Wrap(services.ErrNotFound, component, operation, message, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return services.Wrap(services.ErrNotFound, component, operation, message, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return services.Wrap(services.ErrAlreadyExists, component, operation, message, err)
		}
	}
	if marker := storage.MarkerForContext(err); marker != nil {
		return services.Wrap(marker, component, operation, message, err)
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return services.Wrap(storage.MarkerForStatus(respErr.HTTPStatusCode()), component, operation, message, err)
	}
	return services.Wrap(services.ErrUnavailable, component, operation, message, err)
}
