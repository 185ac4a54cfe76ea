package models

import "time"

type SignStats struct {
	TotalJobs     int     `json:"total_jobs" yaml:"total_jobs"`
	Succeeded     int     `json:"succeeded" yaml:"succeeded"`
	Failed        int     `json:"failed" yaml:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms" yaml:"avg_duration_ms"`
}

type SignResult struct {
	RequestID   string            `json:"request_id" yaml:"request_id"`
	SessionID   string            `json:"session_id" yaml:"session_id"`
	Method      string            `json:"method" yaml:"method"`
	URI         string            `json:"uri" yaml:"uri"`
	Timestamp   int64             `json:"timestamp_ms" yaml:"timestamp_ms"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Fingerprint string            `json:"fingerprint_digest,omitempty" yaml:"fingerprint_digest,omitempty"`
	Duration    time.Duration     `json:"duration" yaml:"duration"`
	Status      string            `json:"status" yaml:"status"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type BatchReport struct {
	BatchID   string        `json:"batch_id" yaml:"batch_id"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Results   []*SignResult `json:"results" yaml:"results"`
	Stats     SignStats     `json:"stats" yaml:"stats"`
}

const (
	StatusSigned = "signed"
	StatusFailed = "failed"
)
