package device

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultSnapshotTimeout = 30 * time.Second

	// maxSnapshotSize ограничивает размер снимка (64 MiB).
	maxSnapshotSize = 64 << 20
)

// SnapshotCamera — камера с HTTP snapshot-эндпоинтом.
//
// Connect проверяет доступность URL запросом HEAD,
// CaptureBlob делает GET и возвращает тело ответа.
type SnapshotCamera struct {
	Session

	name    string
	url     string
	client  *http.Client
	timeout time.Duration

	mu        sync.Mutex
	connected bool
}

// NewSnapshotCamera создаёт камеру. client == nil → http.Client без таймаута,
// ограничение времени задаёт timeout на каждый запрос.
func NewSnapshotCamera(name, url string, client *http.Client, timeout time.Duration) *SnapshotCamera {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}
	return &SnapshotCamera{name: name, url: url, client: client, timeout: timeout}
}

// Name возвращает имя устройства для логов и проверок.
func (c *SnapshotCamera) Name() string { return c.name }

// Connect проверяет, что камера отвечает.
func (c *SnapshotCamera) Connect(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodHead, "")
	if err != nil {
		return err
	}
	resp.Body.Close()

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// CaptureBlob запрашивает снимок в формате format (например PNG).
func (c *SnapshotCamera) CaptureBlob(ctx context.Context, format string) ([]byte, error) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, c.name)
	}

	mime, err := formatMime(format)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodGet, mime)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, mime) {
		return nil, fmt.Errorf("%w: %s returned %s", ErrUnsupportedFormat, c.name, ct)
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("read snapshot from %s: %w", c.name, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCapture, c.name)
	}
	return blob, nil
}

// Disconnect сбрасывает состояние подключения.
func (c *SnapshotCamera) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// do выполняет запрос к камере с таймаутом.
// HTTP >= 400 считается недоступностью устройства.
func (c *SnapshotCamera) do(ctx context.Context, method, accept string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, method, c.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: create request: %v", ErrNotConnected, c.name, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: %v", ErrNotConnected, c.name, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrNotConnected, c.name, resp.StatusCode)
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose освобождает контекст запроса после чтения тела.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func formatMime(format string) (string, error) {
	switch strings.ToUpper(format) {
	case "", "PNG":
		return "image/png", nil
	case "JPEG", "JPG":
		return "image/jpeg", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
