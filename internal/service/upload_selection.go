package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/pkg/config"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

// User-facing notification texts of the upload flow.
const (
	titleTooManyFiles     = "Terlalu banyak file"
	titleInvalidFiles     = "Beberapa file tidak dapat diunggah"
	titleEmptySelection   = "Tidak ada file"
	messageEmptySelection = "Silakan pilih minimal satu file untuk diunggah"
	titleUploadSucceeded  = "Upload berhasil"
	titleUploadFailed     = "Upload gagal"
	messageUploadFailed   = "Terjadi kesalahan saat mengupload file"
)

// FileInput is one file offered for upload.
type FileInput struct {
	Name     string
	Size     int64
	MimeType string
	Content  []byte
}

// DetectedMIME returns the declared type, sniffing the content when none was given.
func (f FileInput) DetectedMIME() string {
	if mt := strings.TrimSpace(f.MimeType); mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	if len(f.Content) == 0 {
		return strings.ToLower(strings.TrimSpace(f.MimeType))
	}
	return strings.ToLower(strings.Split(http.DetectContentType(f.Content), ";")[0])
}

// UploadRules bounds what may enter a selection.
type UploadRules struct {
	MaxFiles     int
	MaxFileSize  int64
	AllowedMIMEs []string
}

// NewUploadRules derives rules from config, falling back to 5 files of 5 MiB, images and PDFs.
func NewUploadRules(cfg config.UploadConfig) UploadRules {
	rules := UploadRules{MaxFiles: cfg.MaxFiles, MaxFileSize: cfg.MaxFileSize, AllowedMIMEs: cfg.AllowedMIMEs}
	if rules.MaxFiles <= 0 {
		rules.MaxFiles = 5
	}
	if rules.MaxFileSize <= 0 {
		rules.MaxFileSize = 5 * 1024 * 1024
	}
	if len(rules.AllowedMIMEs) == 0 {
		rules.AllowedMIMEs = []string{"image/*", "application/pdf"}
	}
	return rules
}

// AllowsMIME matches mimeType against exact entries and "type/*" wildcards.
func (r UploadRules) AllowsMIME(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if mt == "" {
		return false
	}
	for _, allowed := range r.AllowedMIMEs {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
			if strings.HasPrefix(mt, prefix) {
				return true
			}
			continue
		}
		if mt == allowed {
			return true
		}
	}
	return false
}

// ValidateFile reports whether f is acceptable and, if not, the reason shown to the user.
func (r UploadRules) ValidateFile(f FileInput) (string, error) {
	if !r.AllowsMIME(f.DetectedMIME()) {
		return fmt.Sprintf("%s (format tidak didukung)", f.Name), appErrors.ErrUnsupportedFile
	}
	if f.Size > r.MaxFileSize {
		return fmt.Sprintf("%s (melebihi %dMB)", f.Name, r.MaxFileSize/(1024*1024)), appErrors.ErrFileTooLarge
	}
	return "", nil
}

type selectedFile struct {
	meta    dto.SelectedFile
	content []byte
}

// Selection is the pending batch of a session. It is not safe for concurrent use.
type Selection struct {
	rules UploadRules
	files []selectedFile
}

// NewSelection builds an empty selection.
func NewSelection(rules UploadRules) *Selection {
	return &Selection{rules: rules}
}

// Add appends the valid files. A batch that would overflow the limit is rejected whole.
// The returned notice, when non-nil, is the notification to record for the user.
func (s *Selection) Add(files []FileInput) (dto.SelectionResult, *NotificationInput, error) {
	result := dto.SelectionResult{Accepted: []dto.SelectedFile{}, Rejected: []string{}}
	if len(s.files)+len(files) > s.rules.MaxFiles {
		result.Total = len(s.files)
		notice := &NotificationInput{
			Type:    models.NotificationError,
			Title:   titleTooManyFiles,
			Message: fmt.Sprintf("Maksimal %d file yang diizinkan", s.rules.MaxFiles),
		}
		return result, notice, appErrors.Clone(appErrors.ErrTooManyFiles, notice.Message)
	}

	for _, f := range files {
		if reason, err := s.rules.ValidateFile(f); err != nil {
			result.Rejected = append(result.Rejected, reason)
			continue
		}
		entry := selectedFile{
			meta: dto.SelectedFile{
				FileID:   uuid.NewString(),
				Name:     f.Name,
				Size:     f.Size,
				MimeType: f.DetectedMIME(),
			},
			content: f.Content,
		}
		s.files = append(s.files, entry)
		result.Accepted = append(result.Accepted, entry.meta)
	}
	result.Total = len(s.files)

	if len(result.Rejected) == 0 {
		return result, nil, nil
	}
	return result, &NotificationInput{
		Type:    models.NotificationError,
		Title:   titleInvalidFiles,
		Message: strings.Join(result.Rejected, ", "),
	}, nil
}

// Remove drops the entry at index.
func (s *Selection) Remove(index int) error {
	if index < 0 || index >= len(s.files) {
		return appErrors.Clone(appErrors.ErrNotFound, "file not in selection")
	}
	s.files = append(s.files[:index], s.files[index+1:]...)
	return nil
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.files = nil
}

// Len returns the number of selected files.
func (s *Selection) Len() int {
	return len(s.files)
}

// Files returns the selection metadata in order.
func (s *Selection) Files() []dto.SelectedFile {
	out := make([]dto.SelectedFile, len(s.files))
	for i, f := range s.files {
		out[i] = f.meta
	}
	return out
}

func (s *Selection) inputs() []FileInput {
	out := make([]FileInput, len(s.files))
	for i, f := range s.files {
		out[i] = FileInput{Name: f.meta.Name, Size: f.meta.Size, MimeType: f.meta.MimeType, Content: f.content}
	}
	return out
}
