package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MIME-типы артефактов.
const (
	MimeImagePNG  = "image/png"
	MimeTextPlain = "text/plain"
)

// artifactTimeLayout — формат метки времени в именах файлов (YYYYmmddHHMMSS).
const artifactTimeLayout = "20060102150405"

// ArtifactName возвращает имя файла и MIME-тип для этапа.
//
//	primary-camera   → RGB_<ts>.png
//	secondary-camera → Multispectral_<ts>.png
//	acoustic-sensor  → AE_sensor<i>_<ts>.txt
func ArtifactName(kind StageKind, sensor int, createdAt time.Time) (name, mime string) {
	ts := createdAt.UTC().Format(artifactTimeLayout)
	switch kind {
	case StageKindPrimaryCamera:
		return fmt.Sprintf("RGB_%s.png", ts), MimeImagePNG
	case StageKindSecondaryCamera:
		return fmt.Sprintf("Multispectral_%s.png", ts), MimeImagePNG
	default:
		return fmt.Sprintf("AE_sensor%d_%s.txt", sensor, ts), MimeTextPlain
	}
}

// RunStoragePath возвращает путь хранения файлов run.
func RunStoragePath(runID uuid.UUID) string {
	return "measurements/" + runID.String()
}
