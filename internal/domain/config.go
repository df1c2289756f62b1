package domain

import (
	"time"
)

// Значения конфигурации по умолчанию.
const (
	DefaultFrequencyMinutes     = 60
	DefaultSensorCount          = 1
	DefaultStageDurationMinutes = 10
)

// DefaultFirstRun — якорь расписания для конфигурации по умолчанию.
var DefaultFirstRun = time.Date(2023, time.April, 26, 8, 0, 0, 0, time.UTC)

// RunConfig — конфигурация измерений станции.
//
// Конфигурация никогда не обновляется частично: каждое изменение
// сохраняется новой записью и получает новый ID. ID используется
// планировщиком для дедупликации повторных перенастроек.
type RunConfig struct {
	// ID — идентификатор версии конфигурации (config identity).
	// 0 — конфигурация ещё не сохранена.
	ID int64 `json:"id"`

	// FrequencyMinutes — период измерений в минутах.
	// Значение <= 0 отключает расписание.
	FrequencyMinutes int `json:"measurement_frequency"`

	// FirstRun — якорь расписания (UTC).
	// Nil — первое измерение через FrequencyMinutes от текущего момента.
	FirstRun *time.Time `json:"first_measurement,omitempty"`

	// PrimaryCamera — включена ли основная (RGB) камера.
	PrimaryCamera bool `json:"rgb_camera"`

	// SecondaryCamera — включена ли мультиспектральная камера.
	SecondaryCamera bool `json:"multispectral_camera"`

	// SensorCount — количество акустических датчиков.
	SensorCount int `json:"number_of_sensors"`

	// StageDurationMinutes — длительность акустической записи в минутах.
	StageDurationMinutes float64 `json:"length_of_ae"`

	// CreatedAt — время сохранения этой версии.
	CreatedAt time.Time `json:"created_at"`
}

// DefaultRunConfig возвращает конфигурацию, создаваемую при первом обращении.
func DefaultRunConfig() RunConfig {
	first := DefaultFirstRun
	return RunConfig{
		FrequencyMinutes:     DefaultFrequencyMinutes,
		FirstRun:             &first,
		PrimaryCamera:        true,
		SecondaryCamera:      false,
		SensorCount:          DefaultSensorCount,
		StageDurationMinutes: DefaultStageDurationMinutes,
	}
}

// Validate проверяет конфигурацию перед сохранением.
//
// Частота должна превышать длительность этапа, если обе величины заданы:
// иначе следующее измерение начнётся раньше, чем закончится запись.
func (c *RunConfig) Validate() error {
	if c.FrequencyMinutes < 0 {
		return &ConfigurationError{Field: "measurement_frequency", Reason: "must not be negative"}
	}
	if c.SensorCount < 0 {
		return &ConfigurationError{Field: "number_of_sensors", Reason: "must not be negative"}
	}
	if c.StageDurationMinutes < 0 {
		return &ConfigurationError{Field: "length_of_ae", Reason: "must not be negative"}
	}
	if c.FrequencyMinutes > 0 && c.StageDurationMinutes > 0 &&
		float64(c.FrequencyMinutes) <= c.StageDurationMinutes {
		return &ConfigurationError{
			Field:  "measurement_frequency",
			Reason: "must be greater than length_of_ae",
		}
	}
	return nil
}

// Frequency возвращает период как time.Duration.
func (c *RunConfig) Frequency() time.Duration {
	return time.Duration(c.FrequencyMinutes) * time.Minute
}

// StageDuration возвращает длительность акустического этапа.
func (c *RunConfig) StageDuration() time.Duration {
	return time.Duration(c.StageDurationMinutes * float64(time.Minute))
}

// Identity возвращает указатель на ID или nil для несохранённой конфигурации.
func (c *RunConfig) Identity() *int64 {
	if c.ID == 0 {
		return nil
	}
	id := c.ID
	return &id
}

// Toggles возвращает снимок переключателей этапов для Run.
func (c *RunConfig) Toggles() Toggles {
	return Toggles{
		PrimaryCamera:        c.PrimaryCamera,
		SecondaryCamera:      c.SecondaryCamera,
		SensorCount:          c.SensorCount,
		StageDurationMinutes: c.StageDurationMinutes,
	}
}

// SameSettings сравнивает пользовательские поля (без ID и CreatedAt).
func (c *RunConfig) SameSettings(other *RunConfig) bool {
	if other == nil {
		return false
	}
	if c.FrequencyMinutes != other.FrequencyMinutes ||
		c.PrimaryCamera != other.PrimaryCamera ||
		c.SecondaryCamera != other.SecondaryCamera ||
		c.SensorCount != other.SensorCount ||
		c.StageDurationMinutes != other.StageDurationMinutes {
		return false
	}
	switch {
	case c.FirstRun == nil && other.FirstRun == nil:
		return true
	case c.FirstRun == nil || other.FirstRun == nil:
		return false
	default:
		return c.FirstRun.Equal(*other.FirstRun)
	}
}

// Toggles — неизменяемый снимок включённых этапов на момент создания Run.
type Toggles struct {
	PrimaryCamera        bool    `json:"rgb_camera"`
	SecondaryCamera      bool    `json:"multispectral_camera"`
	SensorCount          int     `json:"number_of_sensors"`
	StageDurationMinutes float64 `json:"length_of_ae"`
}

// AcousticEnabled — акустический этап выполняется только при наличии
// датчиков и ненулевой длительности записи.
func (t Toggles) AcousticEnabled() bool {
	return t.SensorCount > 0 && t.StageDurationMinutes > 0
}

// StageDuration возвращает длительность акустической записи.
func (t Toggles) StageDuration() time.Duration {
	return time.Duration(t.StageDurationMinutes * float64(time.Minute))
}
