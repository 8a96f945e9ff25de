package models

import "time"

// StageStatus is the state of one processing stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
)

// ProcessingStageNames are run strictly in this order.
var ProcessingStageNames = []string{
	"Mengidentifikasi Jenis Dokumen",
	"Ekstraksi Data",
	"Klasifikasi Dokumen",
	"Validasi Data",
}

// ProcessingStage reports the progress of one named stage.
type ProcessingStage struct {
	Name        string      `json:"name"`
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// NewProcessingStages returns every stage in pending state.
func NewProcessingStages() []ProcessingStage {
	stages := make([]ProcessingStage, len(ProcessingStageNames))
	for i, name := range ProcessingStageNames {
		stages[i] = ProcessingStage{Name: name, Status: StagePending}
	}
	return stages
}

// BatchState is the processing state of a session's confirmed batch.
type BatchState string

const (
	BatchIdle       BatchState = "idle"
	BatchProcessing BatchState = "processing"
	BatchCompleted  BatchState = "completed"
	BatchCancelled  BatchState = "cancelled"
	BatchFailed     BatchState = "failed"
)
