package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// MeasurementResponse — run из API.
type MeasurementResponse struct {
	ID          string             `json:"id"`
	DateTime    time.Time          `json:"date_time"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Scheduled   bool               `json:"scheduled"`
	Config      map[string]any     `json:"config"`
	Stages      []StageResponse    `json:"stages"`
	Artifacts   []ArtifactResponse `json:"artifacts"`
	FailedCount int                `json:"failed_stages"`
}

// StageResponse — результат этапа из API.
type StageResponse struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Artifact   string    `json:"artifact,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// ArtifactResponse — артефакт из API.
type ArtifactResponse struct {
	Name     string `json:"name"`
	RemoteID string `json:"remote_id"`
	URL      string `json:"url"`
}

// LatestResponse — ответ /measurements/latest.
type LatestResponse struct {
	LastMeasurement    *time.Time            `json:"last_measurement"`
	PlannedMeasurement *time.Time            `json:"planned_measurement"`
	LatestMeasurement  []MeasurementResponse `json:"latest_measurement"`
}

// HistoryResponse — ответ /measurements/history.
type HistoryResponse struct {
	Measurements []MeasurementResponse `json:"measurements"`
}

// StartResponse — ответ ручного запуска.
type StartResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Measurement MeasurementResponse `json:"measurement"`
}

// ConfigResponse — конфигурация измерений из API.
type ConfigResponse struct {
	ConfigID             int64      `json:"config_id"`
	MeasurementFrequency int        `json:"measurement_frequency"`
	FirstMeasurement     *time.Time `json:"first_measurement"`
	RGBCamera            bool       `json:"rgb_camera"`
	MultispectralCamera  bool       `json:"multispectral_camera"`
	NumberOfSensors      int        `json:"number_of_sensors"`
	LengthOfAE           float64    `json:"length_of_ae"`
	CreatedAt            time.Time  `json:"created_at"`
}

// SchedulerStatusResponse — статус планировщика из API.
type SchedulerStatusResponse struct {
	Active            bool       `json:"active"`
	State             string     `json:"state"`
	NextScheduledTime *time.Time `json:"next_scheduled_time"`
	IntervalMinutes   int        `json:"interval_minutes"`
	ConfigID          *int64     `json:"config_id"`
}

// ProbeResponse — результат проверки устройства.
type ProbeResponse struct {
	Device    string    `json:"device"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// --- Request types ---

// ConfigRequest — новая конфигурация измерений.
type ConfigRequest struct {
	MeasurementFrequency int        `json:"measurement_frequency"`
	FirstMeasurement     *time.Time `json:"first_measurement,omitempty"`
	RGBCamera            bool       `json:"rgb_camera"`
	MultispectralCamera  bool       `json:"multispectral_camera"`
	NumberOfSensors      int        `json:"number_of_sensors"`
	LengthOfAE           float64    `json:"length_of_ae"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API станции.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// Таймаут большой: ручной run отвечает только после всех этапов.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// --- Measurements ---

// Latest возвращает последние измерения.
func (c *Client) Latest() (*LatestResponse, error) {
	var resp LatestResponse
	err := c.get("/api/v1/measurements/latest", nil, &resp)
	return &resp, err
}

// History возвращает измерения за период.
func (c *Client) History(from, to time.Time) ([]MeasurementResponse, error) {
	params := url.Values{}
	params.Set("start_date", from.UTC().Format(time.RFC3339))
	params.Set("end_date", to.UTC().Format(time.RFC3339))

	var resp HistoryResponse
	err := c.get("/api/v1/measurements/history", params, &resp)
	return resp.Measurements, err
}

// GetMeasurement возвращает run по ID.
func (c *Client) GetMeasurement(id string) (*MeasurementResponse, error) {
	var m MeasurementResponse
	err := c.get("/api/v1/measurements/"+url.PathEscape(id), nil, &m)
	return &m, err
}

// Start запускает измерение. cfg == nil — сохранённая конфигурация.
func (c *Client) Start(cfg *ConfigRequest) (*StartResponse, error) {
	var resp StartResponse
	var body any
	if cfg != nil {
		body = cfg
	}
	err := c.post("/api/v1/measurements/start", body, &resp)
	return &resp, err
}

// --- Settings ---

// GetConfig возвращает текущую конфигурацию.
func (c *Client) GetConfig() (*ConfigResponse, error) {
	var cfg ConfigResponse
	err := c.get("/api/v1/settings/measurement-config", nil, &cfg)
	return &cfg, err
}

// UpdateConfig сохраняет конфигурацию.
func (c *Client) UpdateConfig(req ConfigRequest) (*ConfigResponse, error) {
	var cfg ConfigResponse
	err := c.put("/api/v1/settings/measurement-config", req, &cfg)
	return &cfg, err
}

// --- Scheduler & devices ---

// SchedulerStatus возвращает статус планировщика.
func (c *Client) SchedulerStatus() (*SchedulerStatusResponse, error) {
	var s SchedulerStatusResponse
	err := c.get("/api/v1/scheduler/status", nil, &s)
	return &s, err
}

// Trigger запускает измерение с сохранённой конфигурацией.
func (c *Client) Trigger() (*StartResponse, error) {
	var resp StartResponse
	err := c.post("/api/v1/scheduler/trigger", nil, &resp)
	return &resp, err
}

// Devices возвращает результаты проверки устройств.
func (c *Client) Devices(refresh bool) ([]ProbeResponse, error) {
	var params url.Values
	if refresh {
		params = url.Values{"refresh": []string{"true"}}
	}
	var probes []ProbeResponse
	err := c.get("/api/v1/devices/health", params, &probes)
	return probes, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
