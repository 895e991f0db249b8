// prometheus.go - Prometheus text format exporter for the in-process
// counters.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

var serverStartTime = time.Now()

type promMetric struct {
	name, help, kind string
	samples          []promSample
}

type promSample struct {
	labels string
	value  float64
}

func counter(name, help string, v int64) promMetric {
	return promMetric{name: name, help: help, kind: "counter", samples: []promSample{{value: float64(v)}}}
}

func writePrometheus(sb *strings.Builder, metrics []promMetric) {
	for _, m := range metrics {
		fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", m.name, m.help, m.name, m.kind)
		for _, s := range m.samples {
			if s.labels != "" {
				fmt.Fprintf(sb, "%s{%s} %g\n", m.name, s.labels, s.value)
			} else {
				fmt.Fprintf(sb, "%s %g\n", m.name, s.value)
			}
		}
		sb.WriteString("\n")
	}
}

// PrometheusMetricsHandler exports GetMetrics() in Prometheus text format.
func PrometheusMetricsHandler(build BuildInfo) http.Handler {
	info := fmt.Sprintf(`version="%s",commit="%s"`, prometheusLabel(build.Version), prometheusLabel(build.Commit))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetMetrics().Snapshot()

		var sb strings.Builder
		writePrometheus(&sb, []promMetric{
			{name: "qs_info", help: "Application version info", kind: "gauge", samples: []promSample{{labels: info, value: 1}}},
			counter("qs_requests_total", "Total number of HTTP requests", s.RequestsTotal),
			{name: "qs_request_errors_total", help: "HTTP responses by error class", kind: "counter", samples: []promSample{
				{labels: `class="4xx"`, value: float64(s.RequestErrors4xx)},
				{labels: `class="5xx"`, value: float64(s.RequestErrors5xx)},
			}},
			counter("qs_rate_limited_total", "Requests rejected by the rate limiter", s.RateLimitedTotal),
			counter("qs_uploads_total", "Share batches stored", s.UploadsTotal),
			counter("qs_upload_files_total", "Files stored", s.UploadFilesTotal),
			counter("qs_upload_bytes_total", "Bytes stored", s.UploadBytesTotal),
			counter("qs_upload_errors_total", "Failed uploads", s.UploadErrorsTotal),
			{name: "qs_downloads_total", help: "Downloads served by mode", kind: "counter", samples: []promSample{
				{labels: `mode="archive"`, value: float64(s.DownloadsArchiveTotal)},
				{labels: `mode="presigned"`, value: float64(s.DownloadsPresignedTotal)},
			}},
			counter("qs_download_bytes_total", "Bytes served or offered for download", s.DownloadBytesTotal),
			counter("qs_download_errors_total", "Failed downloads", s.DownloadErrorsTotal),
			counter("qs_code_lookups_total", "Share code lookups", s.CodeLookupsTotal),
			counter("qs_code_lookup_failures_total", "Share code lookups that matched no live batch", s.CodeLookupFailures),
			counter("qs_swept_batches_total", "Batches removed by the sweeper", s.SweptBatchesTotal),
			counter("qs_swept_objects_total", "Objects removed by the sweeper", s.SweptObjectsTotal),
			counter("qs_sweep_errors_total", "Sweeper runs that reported errors", s.SweepErrorsTotal),
			{name: "qs_uptime_seconds", help: "Application uptime in seconds", kind: "gauge", samples: []promSample{
				{value: float64(int64(time.Since(serverStartTime).Seconds()))},
			}},
		})

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sb.String()))
	})
}

// Helper function to format label safely for Prometheus
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
