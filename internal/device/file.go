package device

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Имена файлов стенда в DEVICE_FIXTURE_DIR.
const (
	FixtureImage       = "test.png"
	FixtureSensorMock  = "ae.mock.txt"
	fixtureSensorFile  = "sensor%d.txt"
	fixtureCameraImage = "%s.png"
)

// FileCamera отдаёт снимок из файла вместо камеры.
// Ищет <dir>/<name>.png, затем общий <dir>/test.png.
type FileCamera struct {
	Session

	name string
	dir  string

	mu   sync.Mutex
	path string
}

// NewFileCamera создаёт камеру стенда.
func NewFileCamera(name, dir string) *FileCamera {
	return &FileCamera{name: name, dir: dir}
}

// Name возвращает имя устройства.
func (c *FileCamera) Name() string { return c.name }

// Connect находит файл снимка.
func (c *FileCamera) Connect(context.Context) error {
	path, err := firstExisting(
		filepath.Join(c.dir, fmt.Sprintf(fixtureCameraImage, c.name)),
		filepath.Join(c.dir, FixtureImage),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotConnected, c.name, err)
	}

	c.mu.Lock()
	c.path = path
	c.mu.Unlock()
	return nil
}

// CaptureBlob читает файл снимка. Поддерживается только PNG.
func (c *FileCamera) CaptureBlob(ctx context.Context, format string) ([]byte, error) {
	c.mu.Lock()
	path := c.path
	c.mu.Unlock()

	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, c.name)
	}
	if mime, err := formatMime(format); err != nil || mime != "image/png" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCapture, path)
	}
	return blob, nil
}

// Disconnect забывает найденный файл.
func (c *FileCamera) Disconnect() error {
	c.mu.Lock()
	c.path = ""
	c.mu.Unlock()
	return nil
}

// FileSensors отдаёт записи акустических датчиков из файлов
// <dir>/sensor<i>.txt или общего <dir>/ae.mock.txt.
//
// Если Realtime включён, чтение длится столько же, сколько запись
// настоящего датчика.
type FileSensors struct {
	dir      string
	count    int
	clock    clockwork.Clock
	realtime bool
}

// NewFileSensors создаёт набор из count датчиков.
func NewFileSensors(dir string, count int, clock clockwork.Clock, realtime bool) *FileSensors {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileSensors{dir: dir, count: count, clock: clock, realtime: realtime}
}

// ReadSensor возвращает запись датчика sensor (1..count).
// count == 0 означает «без ограничения».
func (s *FileSensors) ReadSensor(ctx context.Context, sensor int, d time.Duration) ([]byte, error) {
	if sensor < 1 || (s.count > 0 && sensor > s.count) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSensor, sensor)
	}

	if s.realtime && d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(d):
		}
	}

	path, err := firstExisting(
		filepath.Join(s.dir, fmt.Sprintf(fixtureSensorFile, sensor)),
		filepath.Join(s.dir, FixtureSensorMock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: sensor %d: %v", ErrNotConnected, sensor, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: sensor %d", ErrEmptyCapture, sensor)
	}
	return data, nil
}

// firstExisting возвращает первый существующий путь.
func firstExisting(paths ...string) (string, error) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("none of %v exists", paths)
}
