package destination

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// S3Store keeps artifacts in an S3-compatible object store. The destination
// Username carries the access key; the secret is the secret key.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(dest *model.Destination, secret string) *S3Store {
	opts := s3.Options{
		Region:      dest.Region,
		Credentials: credentials.NewStaticCredentialsProvider(dest.Username, secret, ""),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if dest.Endpoint != "" {
		opts.BaseEndpoint = aws.String(dest.Endpoint)
		opts.UsePathStyle = true
	}
	return &S3Store{
		client: s3.New(opts),
		bucket: dest.Bucket,
		prefix: strings.Trim(dest.Path, "/"),
	}
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// classifyS3Error separates auth failures from transfer failures.
func classifyS3Error(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "InvalidAccessKeyId") || strings.Contains(msg, "SignatureDoesNotMatch") ||
		strings.Contains(msg, "AccessDenied") {
		return backuperr.Wrap(backuperr.KindDestination, "auth: s3 rejected credentials", err)
	}
	return backuperr.Wrap(backuperr.KindDestination, op, err)
}

func (s *S3Store) Put(ctx context.Context, name string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   r,
	})
	if err != nil {
		return classifyS3Error("upload artifact", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := withRetry(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name)),
		})
		if err != nil {
			var noKey *s3types.NoSuchKey
			if errors.As(err, &noKey) {
				return backuperr.Newf(backuperr.KindConfig, "artifact %s not found", name)
			}
			return classifyS3Error("download artifact", err)
		}
		body = out.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *S3Store) List(ctx context.Context) ([]ArtifactInfo, error) {
	var artifacts []ArtifactInfo
	err := withRetry(ctx, func() error {
		artifacts = artifacts[:0]
		input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
		if s.prefix != "" {
			input.Prefix = aws.String(s.prefix + "/")
		}

		paginator := s3.NewListObjectsV2Paginator(s.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return classifyS3Error("destination unavailable", err)
			}
			for _, obj := range page.Contents {
				info := ArtifactInfo{Name: path.Base(aws.ToString(obj.Key))}
				if obj.Size != nil {
					info.SizeBytes = *obj.Size
				}
				if obj.LastModified != nil {
					info.ModTime = *obj.LastModified
				}
				artifacts = append(artifacts, info)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return classifyS3Error("delete artifact", err)
	}
	return nil
}
