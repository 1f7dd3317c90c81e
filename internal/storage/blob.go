package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

// ErrGenerationConflict is returned when a blob write's generation token
// (the object's ETag at read time) no longer matches what's stored, meaning
// another writer updated the object concurrently (§4.15).
var ErrGenerationConflict = errors.New("storage: blob generation conflict")

// Generation is an opaque optimistic-concurrency token, an S3 object's ETag.
type Generation string

// BlobStore is the minimal interface the dual-writer scenario needs: read
// the canonical blob plus its generation, then attempt a conditional write.
type BlobStore interface {
	Get(ctx context.Context, key string) (data []byte, gen Generation, err error)
	Put(ctx context.Context, key string, data []byte, expectedGen Generation) (newGen Generation, err error)
}

// S3BlobStore backs BlobStore with S3, using ETag as the generation token.
// A conditional PutObject (If-Match on expectedGen) is not universally
// supported across S3-compatible backends, so the conflict check instead
// re-reads the object's current ETag immediately before the write and
// aborts if it has moved — a narrower window than true server-side
// conditional writes, but sufficient for this system's low write frequency.
type S3BlobStore struct {
	client *s3.Client
	bucket string
	mu     sync.Mutex
}

// NewS3BlobStore constructs an S3BlobStore using the default AWS config
// chain (environment, shared config file, EC2/ECS role credentials).
func NewS3BlobStore(ctx context.Context, bucket string) (*S3BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "storage.NewS3BlobStore", "loading AWS config", err)
	}
	return &S3BlobStore{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Get fetches the object at key along with its ETag as the generation token.
func (b *S3BlobStore) Get(ctx context.Context, key string) ([]byte, Generation, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", apperr.Wrap(apperr.KindNoData, "storage.S3BlobStore.Get", "blob not found: "+key, err)
		}
		return nil, "", apperr.Wrap(apperr.KindExternal, "storage.S3BlobStore.Get", "fetching blob", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindExternal, "storage.S3BlobStore.Get", "reading blob body", err)
	}
	return data, Generation(aws.ToString(out.ETag)), nil
}

// Put uploads data under key, but only if the object's current ETag still
// matches expectedGen (an empty expectedGen means "object must not exist
// yet"). On mismatch it returns ErrGenerationConflict so the caller can
// re-read, re-apply its mutation, and retry.
func (b *S3BlobStore) Put(ctx context.Context, key string, data []byte, expectedGen Generation) (Generation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, currentGen, err := b.Get(ctx, key)
	exists := !apperr.Is(err, apperr.KindNoData)
	if err != nil && exists {
		return "", err
	}
	if exists && currentGen != expectedGen {
		return "", ErrGenerationConflict
	}
	if !exists && expectedGen != "" {
		return "", ErrGenerationConflict
	}

	uploader := manager.NewUploader(b.client)
	result, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindExternal, "storage.S3BlobStore.Put", "uploading blob", err)
	}
	return Generation(aws.ToString(result.ETag)), nil
}

var _ BlobStore = (*S3BlobStore)(nil)

// MemBlobStore is a pure in-memory BlobStore for unit tests, implementing
// the same generation-token conflict semantics as S3BlobStore.
type MemBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
	gen  map[string]int
}

// NewMemBlobStore constructs an empty in-memory blob store.
func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{data: make(map[string][]byte), gen: make(map[string]int)}
}

func (m *MemBlobStore) Get(_ context.Context, key string) ([]byte, Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.data[key]
	if !ok {
		return nil, "", apperr.New(apperr.KindNoData, "storage.MemBlobStore.Get", "blob not found: "+key)
	}
	return data, generationString(m.gen[key]), nil
}

func (m *MemBlobStore) Put(_ context.Context, key string, data []byte, expectedGen Generation) (Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.gen[key]
	if exists && generationString(current) != expectedGen {
		return "", ErrGenerationConflict
	}
	if !exists && expectedGen != "" {
		return "", ErrGenerationConflict
	}

	next := current + 1
	m.data[key] = data
	m.gen[key] = next
	return generationString(next), nil
}

func generationString(n int) Generation {
	const hexDigits = "0123456789abcdef"
	if n == 0 {
		return Generation(string(hexDigits[0]))
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{hexDigits[n%16]}, buf...)
		n /= 16
	}
	return Generation(buf)
}

var _ BlobStore = (*MemBlobStore)(nil)
