package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

// ProcessingInput is one uploaded file handed to the simulator.
type ProcessingInput struct {
	FileID     string
	DocumentID string
	File       FileInput
}

// ProcessingBatch is the processing state of one confirmed upload batch.
type ProcessingBatch struct {
	mu        sync.Mutex
	inputs    []ProcessingInput
	state     models.BatchState
	stages    []models.ProcessingStage
	extracted []models.ExtractedDocument
	lastErr   string
}

// NewProcessingBatch builds an idle batch.
func NewProcessingBatch() *ProcessingBatch {
	return &ProcessingBatch{state: models.BatchIdle, stages: models.NewProcessingStages()}
}

// Load starts a new batch from inputs. Stages and extracted documents of a finished
// batch are discarded. A batch that is running is left untouched.
func (b *ProcessingBatch) Load(inputs []ProcessingInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == models.BatchProcessing {
		return appErrors.Clone(appErrors.ErrConflict, "batch is still processing")
	}
	b.inputs = append([]ProcessingInput(nil), inputs...)
	b.state = models.BatchIdle
	b.stages = models.NewProcessingStages()
	b.extracted = nil
	b.lastErr = ""
	return nil
}

// State returns the current batch state.
func (b *ProcessingBatch) State() models.BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stages returns a copy of the stage list.
func (b *ProcessingBatch) Stages() []models.ProcessingStage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.ProcessingStage(nil), b.stages...)
}

// Extracted returns a copy of the extracted documents with remaining time rendered for now.
func (b *ProcessingBatch) Extracted(now time.Time) []models.ExtractedDocument {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.ExtractedDocument, len(b.extracted))
	copy(out, b.extracted)
	for i := range out {
		out[i].RemainingTime = FormatRemainingTime(out[i].ExpiryDate, now)
	}
	return out
}

// Busy reports whether the batch is running or loaded and waiting for a worker.
func (b *ProcessingBatch) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == models.BatchProcessing || (b.state == models.BatchIdle && len(b.inputs) > 0)
}

// InputCount returns the number of loaded files.
func (b *ProcessingBatch) InputCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inputs)
}

// LastError returns the message of the last failed run.
func (b *ProcessingBatch) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// ResetError clears the message of the last failed run.
func (b *ProcessingBatch) ResetError() {
	b.mu.Lock()
	b.lastErr = ""
	b.mu.Unlock()
}

// SetReminder applies a reminder option to one extracted document.
func (b *ProcessingBatch) SetReminder(id string, option models.ReminderType, custom *time.Time, now time.Time) (*models.ExtractedDocument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.extracted {
		if b.extracted[i].ID != id {
			continue
		}
		doc := b.extracted[i]
		if err := ApplyReminder(&doc, option, custom, now); err != nil {
			return nil, err
		}
		b.extracted[i] = doc
		return &doc, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "extracted document not found")
}

// ApplyAutoAll resets every extracted document to the auto policy.
func (b *ProcessingBatch) ApplyAutoAll() []models.ExtractedDocument {
	b.mu.Lock()
	defer b.mu.Unlock()
	ApplyAutoAll(b.extracted)
	return append([]models.ExtractedDocument(nil), b.extracted...)
}

// Find returns a copy of one extracted document.
func (b *ProcessingBatch) Find(id string) (*models.ExtractedDocument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, doc := range b.extracted {
		if doc.ID == id {
			out := doc
			return &out, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "extracted document not found")
}

// MarkPromoted flags an extracted document as written back.
func (b *ProcessingBatch) MarkPromoted(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.extracted {
		if b.extracted[i].ID == id {
			b.extracted[i].Promoted = true
		}
	}
}

// claim moves the batch into processing. It reports false when the batch already ran
// or is running.
func (b *ProcessingBatch) claim() ([]ProcessingInput, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == models.BatchProcessing || b.state == models.BatchCompleted {
		return nil, false
	}
	b.state = models.BatchProcessing
	b.stages = models.NewProcessingStages()
	b.extracted = nil
	b.lastErr = ""
	return append([]ProcessingInput(nil), b.inputs...), true
}

func (b *ProcessingBatch) setStage(index int, status models.StageStatus, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stage := &b.stages[index]
	stage.Status = status
	ts := at
	switch status {
	case models.StageProcessing:
		stage.StartedAt = &ts
	case models.StageCompleted:
		stage.CompletedAt = &ts
	}
}

func (b *ProcessingBatch) finish(state models.BatchState, extracted []models.ExtractedDocument, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	b.extracted = extracted
	if err != nil {
		b.lastErr = appErrors.MessageOf(err, "Pemrosesan dokumen gagal")
	}
}

// ProcessingSimulator walks a batch through the fixed processing stages.
type ProcessingSimulator struct {
	classifier DocumentClassifier
	stageDelay time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewProcessingSimulator constructs a simulator. A negative delay is treated as zero.
func NewProcessingSimulator(classifier DocumentClassifier, stageDelay time.Duration, metrics *MetricsService, logger *zap.Logger) *ProcessingSimulator {
	if stageDelay < 0 {
		stageDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingSimulator{classifier: classifier, stageDelay: stageDelay, metrics: metrics, logger: logger, now: time.Now}
}

// extractionStage is the stage during which files are classified.
const extractionStage = 1

// Run processes batch. Running a batch that is processing or completed is a no-op.
// Cancelling ctx stops at the next stage boundary and leaves the batch cancelled.
func (p *ProcessingSimulator) Run(ctx context.Context, batch *ProcessingBatch) error {
	inputs, ok := batch.claim()
	if !ok {
		return nil
	}

	var classified []models.ExtractedDocument
	for i, name := range models.ProcessingStageNames {
		started := p.now()
		batch.setStage(i, models.StageProcessing, started)

		if err := p.wait(ctx); err != nil {
			batch.finish(models.BatchCancelled, nil, err)
			return err
		}
		if i == extractionStage {
			docs, err := p.classifyAll(ctx, inputs)
			if err != nil {
				state := models.BatchFailed
				if ctx.Err() != nil {
					state = models.BatchCancelled
				}
				batch.finish(state, nil, err)
				return err
			}
			classified = docs
		}

		batch.setStage(i, models.StageCompleted, p.now())
		p.metrics.ObserveStage(name, p.now().Sub(started))
	}

	batch.finish(models.BatchCompleted, classified, nil)
	for _, doc := range classified {
		p.metrics.RecordExtraction(doc.DocumentType)
	}
	p.logger.Debug("batch processed", zap.Int("documents", len(classified)))
	return nil
}

func (p *ProcessingSimulator) wait(ctx context.Context) error {
	if p.stageDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.stageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *ProcessingSimulator) classifyAll(ctx context.Context, inputs []ProcessingInput) ([]models.ExtractedDocument, error) {
	if p.classifier == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "classifier unavailable")
	}
	docs := make([]models.ExtractedDocument, 0, len(inputs))
	for _, in := range inputs {
		c, err := p.classifier.Classify(ctx, in.File.Content, in.File.Name, in.File.MimeType)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", in.File.Name, err)
		}
		doc := models.ExtractedDocument{
			ID:            uuid.NewString(),
			DocumentID:    in.DocumentID,
			FileName:      in.File.Name,
			FileSize:      in.File.Size,
			FileType:      in.File.MimeType,
			DocumentType:  c.Type,
			ExtractedData: c.Fields,
			Confidence:    c.Confidence,
			ExpiryDate:    c.ExpiryDate,
			ReminderType:  models.ReminderAuto,
		}
		if c.ExpiryDate != nil {
			reminder := ComputeAutoReminder(c.Type, *c.ExpiryDate)
			doc.ReminderDate = &reminder
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
