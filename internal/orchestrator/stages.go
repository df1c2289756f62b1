package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Observa/internal/domain"
)

// stage — один шаг плана run.
type stage struct {
	kind   domain.StageKind
	sensor int
}

// plan строит список этапов в фиксированном порядке.
func plan(t domain.Toggles) []stage {
	var stages []stage
	if t.PrimaryCamera {
		stages = append(stages, stage{kind: domain.StageKindPrimaryCamera})
	}
	if t.SecondaryCamera {
		stages = append(stages, stage{kind: domain.StageKindSecondaryCamera})
	}
	if t.AcousticEnabled() {
		for i := 1; i <= t.SensorCount; i++ {
			stages = append(stages, stage{kind: domain.StageKindAcoustic, sensor: i})
		}
	}
	return stages
}

// execute выполняет этап и всегда возвращает StageResult.
// Паника драйвера превращается в ошибку этапа.
func (o *Orchestrator) execute(ctx context.Context, run *domain.Run, st stage) (res domain.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Failed(st.kind, st.sensor, fmt.Errorf("%w: panic: %v", ErrDevice, r), o.clock.Now())
		}
	}()

	if err := ctx.Err(); err != nil {
		return domain.Failed(st.kind, st.sensor, fmt.Errorf("%w: %w", ErrRunCancelled, err), o.clock.Now())
	}

	var (
		data []byte
		err  error
	)
	switch st.kind {
	case domain.StageKindPrimaryCamera:
		data, err = o.capture(ctx, o.primary, "primary camera")
	case domain.StageKindSecondaryCamera:
		data, err = o.capture(ctx, o.secondary, "secondary camera")
	case domain.StageKindAcoustic:
		data, err = o.readSensor(ctx, st.sensor, run.Toggles.StageDuration())
	default:
		err = fmt.Errorf("unknown stage kind %q", st.kind)
	}
	if err != nil {
		return domain.Failed(st.kind, st.sensor, err, o.clock.Now())
	}

	artifact, err := o.upload(ctx, run, st, data)
	if err != nil {
		return domain.Failed(st.kind, st.sensor, err, o.clock.Now())
	}

	return domain.Succeeded(st.kind, st.sensor, artifact, o.clock.Now())
}

// capture подключается к камере, делает снимок и отключается.
func (o *Orchestrator) capture(ctx context.Context, dev CaptureDevice, name string) ([]byte, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: %s is not configured", ErrDevice, name)
	}

	if session, ok := dev.(sync.Locker); ok {
		session.Lock()
		defer session.Unlock()
	}

	if err := dev.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrDevice, name, err)
	}
	defer func() {
		if err := dev.Disconnect(); err != nil {
			o.logger.Warn("failed to disconnect device", "device", name, "error", err)
		}
	}()

	blob, err := dev.CaptureBlob(ctx, o.imageFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: capture %s: %w", ErrDevice, name, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s returned no image", ErrDevice, name)
	}
	return blob, nil
}

// readSensor читает данные одного акустического датчика.
func (o *Orchestrator) readSensor(ctx context.Context, sensor int, d time.Duration) ([]byte, error) {
	if o.sensors == nil {
		return nil, fmt.Errorf("%w: acoustic sensors are not configured", ErrDevice)
	}

	data, err := o.sensors.ReadSensor(ctx, sensor, d)
	if err != nil {
		return nil, fmt.Errorf("%w: read sensor %d: %w", ErrDevice, sensor, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: sensor %d returned no data", ErrDevice, sensor)
	}
	return data, nil
}

// upload загружает артефакт в каталог run и сохраняет ссылку на него.
func (o *Orchestrator) upload(ctx context.Context, run *domain.Run, st stage, data []byte) (domain.Artifact, error) {
	if o.store == nil {
		return domain.Artifact{}, fmt.Errorf("%w: upload store is not configured", ErrUpload)
	}

	if err := o.store.Authenticate(ctx); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: authenticate: %w", ErrUpload, err)
	}

	handle, err := o.store.EnsurePath(ctx, domain.RunStoragePath(run.ID))
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: ensure path: %w", ErrUpload, err)
	}

	name, mime := domain.ArtifactName(st.kind, st.sensor, run.CreatedAt)
	remoteID, err := o.store.Upload(ctx, handle, name, data, mime)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: upload %s: %w", ErrUpload, name, err)
	}
	if remoteID == "" {
		return domain.Artifact{}, fmt.Errorf("%w: upload %s: %w", ErrUpload, name, errors.New("store returned empty id"))
	}

	if err := o.runs.AppendArtifact(context.WithoutCancel(ctx), run.ID, name, remoteID); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: record artifact %s: %w", ErrUpload, name, err)
	}

	return domain.Artifact{Name: name, RemoteID: remoteID}, nil
}
