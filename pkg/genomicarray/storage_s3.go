package genomicarray

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3URI is a bucket and an optional key prefix.
type S3URI struct {
	Bucket string
	Prefix string
}

// ParseS3URI splits s3://bucket/prefix. Surrounding slashes are trimmed from
// the prefix.
func ParseS3URI(uri string) (*S3URI, error) {
	if !IsS3URI(uri) {
		return nil, fmt.Errorf("invalid S3 URI %q: must start with s3://", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "s3://"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("invalid S3 URI %q: missing bucket name", uri)
	}

	u := &S3URI{Bucket: parts[0]}
	if len(parts) == 2 {
		u.Prefix = strings.Trim(parts[1], "/")
	}
	return u, nil
}

// IsS3URI checks if a path is an S3 URI
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// S3EndpointEnv points the S3 backend at an S3-compatible service such as
// MinIO. Path-style addressing is used when it is set.
const S3EndpointEnv = "GENOMICARRAY_S3_ENDPOINT"

// S3Storage implements Storage on an S3 bucket. Directories are key
// prefixes. Rename copies every object and deletes the originals, writing
// the metadata file of a store last.
type S3Storage struct {
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	ctx        context.Context
}

// NewS3Storage opens s3://bucket/prefix with the default AWS credential
// chain. ctx bounds every request the storage makes.
func NewS3Storage(ctx context.Context, uri string) (*S3Storage, error) {
	u, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv(S3EndpointEnv); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StorageFromClient(ctx, client, u), nil
}

// NewS3StorageFromClient wraps an existing client.
func NewS3StorageFromClient(ctx context.Context, client *s3.Client, u *S3URI) *S3Storage {
	return &S3Storage{
		bucket: u.Bucket,
		prefix: u.Prefix,
		client: client,
		uploader: manager.NewUploader(client, func(up *manager.Uploader) {
			up.PartSize = 10 * MB
			up.Concurrency = 3
		}),
		downloader: manager.NewDownloader(client),
		ctx:        ctx,
	}
}

// objectKey maps a storage path to its key in the bucket.
func (s *S3Storage) objectKey(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

func (s *S3Storage) relative(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *S3Storage) ReadFile(path string) ([]byte, error) {
	key := s.objectKey(path)

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.Download(s.ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}

	return buf.Bytes(), nil
}

func (s *S3Storage) WriteFile(path string, data []byte) error {
	key := s.objectKey(path)

	_, err := s.uploader.Upload(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}

	return nil
}

func (s *S3Storage) List(prefix string) ([]string, error) {
	var files []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(s.ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			files = append(files, s.relative(aws.ToString(obj.Key)))
		}
	}

	return files, nil
}

// tree lists the object at path and every object below path/.
func (s *S3Storage) tree(path string) ([]string, error) {
	all, err := s.List(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range all {
		if f == path || strings.HasPrefix(f, path+"/") {
			files = append(files, f)
		}
	}
	return files, nil
}

func (s *S3Storage) Exists(path string) (bool, error) {
	_, err := s.client.HeadObject(s.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(path)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("failed to stat s3://%s/%s: %w", s.bucket, s.objectKey(path), err)
	}

	// a directory exists when any object lives below it
	files, err := s.tree(path)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// MkdirAll is a no-op; prefixes exist once an object is written below them.
func (s *S3Storage) MkdirAll(path string) error {
	return nil
}

func (s *S3Storage) RemoveAll(path string) error {
	files, err := s.tree(path)
	if err != nil {
		return err
	}

	// DeleteObjects accepts at most 1000 keys
	for len(files) > 0 {
		n := min(len(files), 1000)
		ids := make([]types.ObjectIdentifier, n)
		for i, f := range files[:n] {
			ids[i] = types.ObjectIdentifier{Key: aws.String(s.objectKey(f))}
		}
		_, err := s.client.DeleteObjects(s.ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects below s3://%s/%s: %w", s.bucket, s.objectKey(path), err)
		}
		files = files[n:]
	}
	return nil
}

func (s *S3Storage) Rename(oldpath, newpath string) error {
	existing, err := s.tree(newpath)
	if err != nil {
		return err
	}
	if len(existing) > 0 && !(len(existing) == 1 && existing[0] == newpath) {
		return fmt.Errorf("failed to rename %s: %s: %w", oldpath, newpath, fs.ErrExist)
	}

	files, err := s.tree(oldpath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("failed to rename %s: %w", oldpath, fs.ErrNotExist)
	}

	// the metadata file marks a store as committed
	sort.SliceStable(files, func(i, j int) bool {
		return !strings.HasSuffix(files[i], metadataFile) && strings.HasSuffix(files[j], metadataFile)
	})

	for _, f := range files {
		src := s.objectKey(f)
		dst := s.objectKey(newpath + strings.TrimPrefix(f, oldpath))
		_, err := s.client.CopyObject(s.ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			CopySource: aws.String(copySource(s.bucket, src)),
			Key:        aws.String(dst),
		})
		if err != nil {
			return fmt.Errorf("failed to copy s3://%s/%s: %w", s.bucket, src, err)
		}
	}

	return s.RemoveAll(oldpath)
}

// copySource URL-encodes bucket/key segment by segment.
func copySource(bucket, key string) string {
	parts := strings.Split(bucket+"/"+key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (s *S3Storage) GetBasePath() string {
	if s.prefix == "" {
		return fmt.Sprintf("s3://%s", s.bucket)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

func (s *S3Storage) IsS3() bool {
	return true
}
