package device

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

// --- SnapshotCamera Tests ---

func snapshotServer(t *testing.T, status int, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSnapshotCamera_Capture(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodGet {
			accept = r.Header.Get("Accept")
			w.Write(pngBytes)
		}
	}))
	defer srv.Close()

	cam := NewSnapshotCamera("primary", srv.URL, srv.Client(), time.Second)
	ctx := context.Background()

	if err := cam.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	blob, err := cam.CaptureBlob(ctx, "PNG")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if string(blob) != string(pngBytes) {
		t.Errorf("unexpected blob %q", blob)
	}
	if accept != "image/png" {
		t.Errorf("expected Accept image/png, got %q", accept)
	}
	if err := cam.Disconnect(); err != nil {
		t.Errorf("disconnect: %v", err)
	}
}

func TestSnapshotCamera_CaptureRequiresConnect(t *testing.T) {
	srv := snapshotServer(t, http.StatusOK, "image/png", pngBytes)
	cam := NewSnapshotCamera("primary", srv.URL, srv.Client(), time.Second)

	if _, err := cam.CaptureBlob(context.Background(), "PNG"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSnapshotCamera_ConnectFailures(t *testing.T) {
	srv := snapshotServer(t, http.StatusServiceUnavailable, "", nil)
	cam := NewSnapshotCamera("secondary", srv.URL, srv.Client(), time.Second)
	if err := cam.Connect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected for 503, got %v", err)
	}

	down := NewSnapshotCamera("secondary", "http://127.0.0.1:1/snapshot", nil, 200*time.Millisecond)
	if err := down.Connect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected for closed port, got %v", err)
	}
}

func TestSnapshotCamera_EmptyAndWrongFormat(t *testing.T) {
	empty := snapshotServer(t, http.StatusOK, "image/png", nil)
	cam := NewSnapshotCamera("primary", empty.URL, empty.Client(), time.Second)
	_ = cam.Connect(context.Background())
	if _, err := cam.CaptureBlob(context.Background(), "PNG"); !errors.Is(err, ErrEmptyCapture) {
		t.Errorf("expected ErrEmptyCapture, got %v", err)
	}

	jpeg := snapshotServer(t, http.StatusOK, "image/jpeg", []byte("jpeg"))
	cam = NewSnapshotCamera("primary", jpeg.URL, jpeg.Client(), time.Second)
	_ = cam.Connect(context.Background())
	if _, err := cam.CaptureBlob(context.Background(), "PNG"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for content-type mismatch, got %v", err)
	}
	if _, err := cam.CaptureBlob(context.Background(), "TIFF"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for TIFF, got %v", err)
	}
}

// --- FileCamera Tests ---

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFileCamera_PrefersNamedImage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FixtureImage, []byte("shared"))
	writeFile(t, dir, "secondary.png", []byte("own"))

	ctx := context.Background()

	primary := NewFileCamera("primary", dir)
	if err := primary.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	blob, err := primary.CaptureBlob(ctx, "PNG")
	if err != nil || string(blob) != "shared" {
		t.Errorf("primary should fall back to test.png, got %q, %v", blob, err)
	}

	secondary := NewFileCamera("secondary", dir)
	_ = secondary.Connect(ctx)
	blob, err = secondary.CaptureBlob(ctx, "PNG")
	if err != nil || string(blob) != "own" {
		t.Errorf("secondary should use secondary.png, got %q, %v", blob, err)
	}
}

func TestFileCamera_MissingFixture(t *testing.T) {
	cam := NewFileCamera("primary", t.TempDir())

	if err := cam.Connect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := cam.CaptureBlob(context.Background(), "PNG"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("capture without connect should fail, got %v", err)
	}
}

func TestFileCamera_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FixtureImage, nil)

	cam := NewFileCamera("primary", dir)
	_ = cam.Connect(context.Background())
	if _, err := cam.CaptureBlob(context.Background(), "PNG"); !errors.Is(err, ErrEmptyCapture) {
		t.Errorf("expected ErrEmptyCapture, got %v", err)
	}
}

// --- FileSensors Tests ---

func TestFileSensors_PerSensorAndShared(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FixtureSensorMock, []byte("shared"))
	writeFile(t, dir, "sensor2.txt", []byte("second"))

	sensors := NewFileSensors(dir, 3, nil, false)
	ctx := context.Background()

	data, err := sensors.ReadSensor(ctx, 1, time.Minute)
	if err != nil || string(data) != "shared" {
		t.Errorf("sensor 1: got %q, %v", data, err)
	}
	data, err = sensors.ReadSensor(ctx, 2, time.Minute)
	if err != nil || string(data) != "second" {
		t.Errorf("sensor 2: got %q, %v", data, err)
	}
}

func TestFileSensors_UnknownSensor(t *testing.T) {
	sensors := NewFileSensors(t.TempDir(), 2, nil, false)

	for _, n := range []int{0, 3, -1} {
		if _, err := sensors.ReadSensor(context.Background(), n, 0); !errors.Is(err, ErrUnknownSensor) {
			t.Errorf("sensor %d: expected ErrUnknownSensor, got %v", n, err)
		}
	}
}

func TestFileSensors_RealtimeWaitsForDuration(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FixtureSensorMock, []byte("ae"))

	clock := clockwork.NewFakeClock()
	sensors := NewFileSensors(dir, 1, clock, true)

	done := make(chan error, 1)
	go func() {
		_, err := sensors.ReadSensor(context.Background(), 1, 10*time.Minute)
		done <- err
	}()

	clock.BlockUntil(1)
	select {
	case <-done:
		t.Fatal("read finished before the recording window elapsed")
	default:
	}

	clock.Advance(10 * time.Minute)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not finish after the recording window")
	}
}

func TestFileSensors_RealtimeHonoursCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sensors := NewFileSensors(t.TempDir(), 1, clock, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sensors.ReadSensor(ctx, 1, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Session Tests ---

func TestFileCamera_ConcurrentSessions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FixtureImage, pngBytes)
	cam := NewFileCamera("primary-camera", dir)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cam.Lock()
			defer cam.Unlock()

			ctx := context.Background()
			if err := cam.Connect(ctx); err != nil {
				errs <- err
				return
			}
			if _, err := cam.CaptureBlob(ctx, "PNG"); err != nil {
				errs <- err
			}
			_ = cam.Disconnect()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("session failed: %v", err)
	}
}

func TestSession_TryLockWhileHeld(t *testing.T) {
	cam := NewSnapshotCamera("primary-camera", "http://127.0.0.1:1", nil, time.Second)

	cam.Lock()
	if cam.TryLock() {
		t.Fatal("busy camera must not grant a second session")
	}
	cam.Unlock()

	if !cam.TryLock() {
		t.Fatal("free camera should grant a session")
	}
	cam.Unlock()
}
