package models

import "time"

// SystemMetrics is a lightweight metrics snapshot exposed to administrators.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	UploadsAccepted          uint64    `json:"uploads_accepted"`
	UploadsRejected          uint64    `json:"uploads_rejected"`
	ExtractionsCompleted     uint64    `json:"extractions_completed"`
	RemindersSent            uint64    `json:"reminders_sent"`
	DocumentsExpired         uint64    `json:"documents_expired"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
