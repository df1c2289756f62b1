package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectMeta — метаданные загруженного артефакта.
type ObjectMeta struct {
	Name string
	Mime string
	Size int64
}

// Store — хранилище артефактов поверх minio-go.
type Store struct {
	client *minio.Client
	cfg    Config

	mu    sync.Mutex
	ready bool
}

// New создаёт клиента. Сеть не используется до Authenticate.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

// Authenticate проверяет учётные данные и создаёт бакет при первом вызове.
// После успеха повторные вызовы не обращаются к сети.
func (s *Store) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.cfg.Bucket, mapError(err))
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, mapError(err))
		}
	}

	s.ready = true
	return nil
}

// EnsurePath возвращает префикс каталога. В S3 каталоги не создаются,
// поэтому метод только нормализует путь.
func (s *Store) EnsurePath(_ context.Context, p string) (string, error) {
	if !s.isReady() {
		return "", ErrNotAuthenticated
	}
	return normalizePrefix(p)
}

// Upload кладёт data под ключом <handle>/<name> и возвращает ключ.
func (s *Store) Upload(ctx context.Context, handle, name string, data []byte, mime string) (string, error) {
	if !s.isReady() {
		return "", ErrNotAuthenticated
	}

	key, err := objectKey(handle, name)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mime})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, mapError(err))
	}
	return key, nil
}

// Download возвращает содержимое артефакта.
func (s *Store) Download(ctx context.Context, remoteID string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, remoteID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", remoteID, mapError(err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", remoteID, mapError(err))
	}
	return data, nil
}

// Metadata возвращает имя, MIME-тип и размер артефакта.
func (s *Store) Metadata(ctx context.Context, remoteID string) (ObjectMeta, error) {
	info, err := s.client.StatObject(ctx, s.cfg.Bucket, remoteID, minio.StatObjectOptions{})
	if err != nil {
		return ObjectMeta{}, fmt.Errorf("stat %s: %w", remoteID, mapError(err))
	}
	return ObjectMeta{
		Name: path.Base(info.Key),
		Mime: info.ContentType,
		Size: info.Size,
	}, nil
}

func (s *Store) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// normalizePrefix приводит "/measurements/<id>" к "measurements/<id>".
func normalizePrefix(p string) (string, error) {
	cleaned := strings.Trim(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidKey)
	}
	return cleaned, nil
}

// objectKey склеивает префикс и имя. Имя не может содержать "/".
func objectKey(handle, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || name == "." || name == ".." {
		return "", fmt.Errorf("%w: name %q", ErrInvalidKey, name)
	}
	prefix, err := normalizePrefix(handle)
	if err != nil {
		return "", err
	}
	return prefix + "/" + name, nil
}

// mapError переводит ответ S3 «нет такого ключа» в ErrNotFound.
func mapError(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket":
			return fmt.Errorf("%w: %s", ErrNotFound, resp.Message)
		}
	}
	return err
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
