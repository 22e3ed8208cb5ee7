package mirror

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
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"gsm-go/internal/gsm"
)

// deleteBatchSize is the maximum number of keys per DeleteObjects request.
const deleteBatchSize = 1000

// S3Options configures an S3Mirror. Endpoint may point at any S3-compatible
// service; when set, path-style addressing is used.
type S3Options struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Root            string
}

// S3Mirror stores blobs as objects in a single bucket. Object keys are the
// mirror keys joined onto the root, without a leading slash.
type S3Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	root     string
}

func NewS3Mirror(ctx context.Context, opts S3Options) (*S3Mirror, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires a bucket")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		root:     opts.Root,
	}, nil
}

func (m *S3Mirror) objectKey(key string) (string, error) {
	p, err := fullPath(m.root, key)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(p, "/"), nil
}

func (m *S3Mirror) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	k, err := m.objectKey(key)
	if err != nil {
		return err
	}
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(k),
		Body:          io.LimitReader(r, size),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", k, err)
	}
	return nil
}

func (m *S3Mirror) Read(ctx context.Context, key string, w io.Writer) error {
	k, err := m.objectKey(key)
	if err != nil {
		return err
	}
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return notFound(key)
		}
		return fmt.Errorf("downloading %s: %w", k, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("downloading %s: %w", k, err)
	}
	return nil
}

func (m *S3Mirror) Delete(ctx context.Context, key string) error {
	k, err := m.objectKey(key)
	if err != nil {
		return err
	}
	_, err = m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", k, err)
	}
	return nil
}

func (m *S3Mirror) listObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// folderPrefix turns a mirror prefix into an object key prefix ending in "/".
func (m *S3Mirror) folderPrefix(prefix string) (string, error) {
	k, err := m.objectKey(prefix)
	if err != nil {
		return "", err
	}
	if k != "" && !strings.HasSuffix(k, "/") {
		k += "/"
	}
	return k, nil
}

func (m *S3Mirror) RemoveAll(ctx context.Context, prefix string) error {
	k, err := m.folderPrefix(prefix)
	if err != nil {
		return err
	}
	keys, err := m.listObjects(ctx, k)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}
		out, err := m.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(m.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("removing %s: %w", k, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("removing %s: %d objects failed, first %s: %s",
				k, len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

func (m *S3Mirror) List(ctx context.Context, prefix string) ([]string, error) {
	k, err := m.folderPrefix(prefix)
	if err != nil {
		return nil, err
	}
	objects, err := m.listObjects(ctx, k)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, relativeKey(m.root, path.Join("/", o)))
	}
	sort.Strings(keys)
	return keys, nil
}

// Check verifies the bucket is reachable with the configured credentials.
func (m *S3Mirror) Check(ctx context.Context) error {
	if _, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err != nil {
		return fmt.Errorf("bucket %s: %w", m.bucket, err)
	}
	return nil
}

var _ gsm.Mirror = (*S3Mirror)(nil)
