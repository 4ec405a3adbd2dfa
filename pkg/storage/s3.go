package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client a source needs
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads schema documents stored as objects under a bucket prefix.
// Objects nested below the prefix are ignored.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// OpenS3 builds an S3 client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func OpenS3(ctx context.Context, cfg Config) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return NewS3Source(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

// NewS3Source reads objects of bucket whose keys start with prefix
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Kind implements Source
func (s *S3Source) Kind() string {
	return TypeS3
}

// List implements Source
func (s *S3Source) List(ctx context.Context) ([]Document, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})

	var docs []Document
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list schemas: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			base := path.Base(key)
			if strings.HasPrefix(base, ".") {
				continue
			}
			format, ok := FormatForPath(base)
			if !ok {
				continue
			}
			doc, err := s.read(ctx, key, format)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Get implements Source. JSON is preferred over YAML when both exist.
func (s *S3Source) Get(ctx context.Context, name string) (Document, error) {
	if name == "" || strings.Contains(name, "/") || strings.HasPrefix(name, ".") {
		return Document{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		format, _ := FormatForPath(ext)
		doc, err := s.read(ctx, s.prefix+name+ext, format)
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			continue
		}
		return doc, err
	}
	return Document{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
}

func (s *S3Source) read(ctx context.Context, key string, format Format) (Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Document{}, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return Document{
		Name:     NameForPath(key),
		Data:     data,
		Format:   format,
		Location: fmt.Sprintf("s3://%s/%s", s.bucket, key),
	}, nil
}

// Close implements Source
func (s *S3Source) Close() error {
	return nil
}
