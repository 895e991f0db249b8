package server

import (
	"sync"
	"time"
)

const (
	modeArchive   = "archive"
	modePresigned = "presigned"
)

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadFilesTotal    int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Download metrics
	downloadsArchive      int64
	downloadsPresigned    int64
	downloadBytesTotal    int64
	downloadErrorsTotal   int64
	downloadDurationTotal time.Duration

	// Share code lookups
	codeLookupsTotal   int64
	codeLookupFailures int64

	// Sweeper
	sweptBatchesTotal int64
	sweptObjectsTotal int64
	sweepErrorsTotal  int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
	rateLimitedTotal int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a stored batch.
func (m *Metrics) RecordUpload(files int, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadFilesTotal += int64(files)
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordDownload records a served download. For presigned downloads bytes
// is the size offered, not transferred.
func (m *Metrics) RecordDownload(mode string, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == modePresigned {
		m.downloadsPresigned++
	} else {
		m.downloadsArchive++
	}
	m.downloadBytesTotal += bytes
	m.downloadDurationTotal += duration
}

func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

func (m *Metrics) RecordCodeLookup(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codeLookupsTotal++
	if !ok {
		m.codeLookupFailures++
	}
}

func (m *Metrics) RecordSweep(batches, objects int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweptBatchesTotal += int64(batches)
	m.sweptObjectsTotal += int64(objects)
	if err != nil {
		m.sweepErrorsTotal++
	}
}

func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitedTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	downloads := m.downloadsArchive + m.downloadsPresigned
	return MetricsSnapshot{
		UploadsTotal:            m.uploadsTotal,
		UploadFilesTotal:        m.uploadFilesTotal,
		UploadBytesTotal:        m.uploadBytesTotal,
		UploadErrorsTotal:       m.uploadErrorsTotal,
		UploadAvgDurationMs:     avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DownloadsArchiveTotal:   m.downloadsArchive,
		DownloadsPresignedTotal: m.downloadsPresigned,
		DownloadBytesTotal:      m.downloadBytesTotal,
		DownloadErrorsTotal:     m.downloadErrorsTotal,
		DownloadAvgDurationMs:   avgDuration(m.downloadDurationTotal, downloads),
		CodeLookupsTotal:        m.codeLookupsTotal,
		CodeLookupFailures:      m.codeLookupFailures,
		SweptBatchesTotal:       m.sweptBatchesTotal,
		SweptObjectsTotal:       m.sweptObjectsTotal,
		SweepErrorsTotal:        m.sweepErrorsTotal,
		RequestsTotal:           m.requestsTotal,
		RequestErrors5xx:        m.requestErrors5xx,
		RequestErrors4xx:        m.requestErrors4xx,
		RateLimitedTotal:        m.rateLimitedTotal,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadFilesTotal    int64   `json:"upload_files_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	DownloadsArchiveTotal   int64   `json:"downloads_archive_total"`
	DownloadsPresignedTotal int64   `json:"downloads_presigned_total"`
	DownloadBytesTotal      int64   `json:"download_bytes_total"`
	DownloadErrorsTotal     int64   `json:"download_errors_total"`
	DownloadAvgDurationMs   float64 `json:"download_avg_duration_ms"`

	CodeLookupsTotal   int64 `json:"code_lookups_total"`
	CodeLookupFailures int64 `json:"code_lookup_failures_total"`

	SweptBatchesTotal int64 `json:"swept_batches_total"`
	SweptObjectsTotal int64 `json:"swept_objects_total"`
	SweepErrorsTotal  int64 `json:"sweep_errors_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
	RateLimitedTotal int64 `json:"rate_limited_total"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
