package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/pkg/resilience"
)

//go:embed templates/extraction.yaml
var extractionTemplatesYAML []byte

const (
	fieldDateLayout = "02-01-2006"
	// ClassifierRandom picks a type uniformly at random.
	ClassifierRandom = "random"
	// ClassifierKeyword inspects filename and PDF text before falling back to random.
	ClassifierKeyword = "keyword"
)

// DocumentClassifier decides the type of an uploaded file and extracts its fields.
type DocumentClassifier interface {
	Classify(ctx context.Context, content []byte, name, mimeType string) (*models.Classification, error)
}

// FieldTemplates renders per-type extraction fields.
type FieldTemplates struct {
	minConfidence float64
	maxConfidence float64
	types         map[models.DocumentType]map[string]*template.Template
}

type fieldTemplateFile struct {
	Confidence struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"confidence"`
	Types map[string]map[string]string `yaml:"types"`
}

type fieldValues struct {
	Today  string
	Expiry string
}

// LoadFieldTemplates parses raw YAML templates. A nil raw loads the embedded defaults.
func LoadFieldTemplates(raw []byte) (*FieldTemplates, error) {
	if raw == nil {
		raw = extractionTemplatesYAML
	}
	var file fieldTemplateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse field templates: %w", err)
	}
	out := &FieldTemplates{
		minConfidence: file.Confidence.Min,
		maxConfidence: file.Confidence.Max,
		types:         make(map[models.DocumentType]map[string]*template.Template, len(file.Types)),
	}
	if out.maxConfidence < out.minConfidence {
		out.minConfidence, out.maxConfidence = out.maxConfidence, out.minConfidence
	}
	for rawType, fields := range file.Types {
		docType, ok := models.ParseDocumentType(rawType)
		if !ok {
			return nil, fmt.Errorf("field templates: unknown document type %q", rawType)
		}
		parsed := make(map[string]*template.Template, len(fields))
		for label, value := range fields {
			tpl, err := template.New(label).Option("missingkey=error").Parse(value)
			if err != nil {
				return nil, fmt.Errorf("field template %s/%s: %w", rawType, label, err)
			}
			parsed[label] = tpl
		}
		out.types[docType] = parsed
	}
	if _, ok := out.types[models.DocumentTypeOther]; !ok {
		return nil, fmt.Errorf("field templates: missing %s entry", models.DocumentTypeOther)
	}
	return out, nil
}

// Render fills the fields for docType. Unknown types use the Other template.
func (t *FieldTemplates) Render(docType models.DocumentType, today, expiry time.Time) (models.ExtractedFields, error) {
	templates, ok := t.types[docType]
	if !ok {
		templates = t.types[models.DocumentTypeOther]
	}
	values := fieldValues{Today: today.Format(fieldDateLayout), Expiry: expiry.Format(fieldDateLayout)}
	fields := make(models.ExtractedFields, len(templates))
	var buf bytes.Buffer
	for label, tpl := range templates {
		buf.Reset()
		if err := tpl.Execute(&buf, values); err != nil {
			return nil, fmt.Errorf("render field %s: %w", label, err)
		}
		fields[label] = buf.String()
	}
	return fields, nil
}

// ExpiryFrom returns the simulated expiry of a document classified at now.
func ExpiryFrom(now time.Time) time.Time {
	return StartOfDayUTC(now).AddDate(2, 0, 0)
}

// RandomClassifier assigns a uniformly random type, mirroring the simulated extraction.
type RandomClassifier struct {
	templates *FieldTemplates
	now       func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomClassifier builds a classifier. A nil source seeds from the clock.
func NewRandomClassifier(templates *FieldTemplates, source rand.Source) *RandomClassifier {
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}
	return &RandomClassifier{templates: templates, now: time.Now, rnd: rand.New(source)}
}

// Classify implements DocumentClassifier.
func (c *RandomClassifier) Classify(ctx context.Context, _ []byte, _, _ string) (*models.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	docType := models.DocumentTypes[c.rnd.Intn(len(models.DocumentTypes))]
	jitter := c.rnd.Float64()
	c.mu.Unlock()
	return c.classifyAs(docType, jitter)
}

func (c *RandomClassifier) classifyAs(docType models.DocumentType, jitter float64) (*models.Classification, error) {
	now := c.now()
	expiry := ExpiryFrom(now)
	fields, err := c.templates.Render(docType, now, expiry)
	if err != nil {
		return nil, err
	}
	confidence := c.templates.minConfidence + jitter*(c.templates.maxConfidence-c.templates.minConfidence)
	return &models.Classification{
		Type:       docType,
		Fields:     fields,
		Confidence: confidence,
		ExpiryDate: &expiry,
	}, nil
}

type keywordRule struct {
	docType  models.DocumentType
	keywords []string
}

var keywordRules = []keywordRule{
	{docType: models.DocumentTypeSTNK, keywords: []string{"STNK", "NOMOR POLISI", "TANDA NOMOR KENDARAAN"}},
	{docType: models.DocumentTypeSIM, keywords: []string{"SURAT IZIN MENGEMUDI", "SIM"}},
	{docType: models.DocumentTypePassport, keywords: []string{"PASPOR", "PASSPORT"}},
	{docType: models.DocumentTypeKTP, keywords: []string{"KTP", "NIK", "KARTU TANDA PENDUDUK"}},
}

// KeywordClassifier matches keywords in the filename and, for PDFs, the document text.
// Files that match nothing are delegated.
type KeywordClassifier struct {
	fallback *RandomClassifier
	executor *resilience.Executor
	logger   *zap.Logger
}

// NewKeywordClassifier builds a keyword classifier. PDF text extraction runs through executor.
func NewKeywordClassifier(fallback *RandomClassifier, executor *resilience.Executor, logger *zap.Logger) *KeywordClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{fallback: fallback, executor: executor, logger: logger}
}

// Classify implements DocumentClassifier.
func (c *KeywordClassifier) Classify(ctx context.Context, content []byte, name, mimeType string) (*models.Classification, error) {
	haystack := strings.ToUpper(name)
	if isPDF(mimeType) && len(content) > 0 {
		text, err := c.pdfText(ctx, content)
		if err != nil {
			if resilience.IsCircuitOpen(err) {
				return nil, err
			}
			c.logger.Warn("pdf text extraction failed", zap.String("file", name), zap.Error(err))
		} else {
			haystack += "\n" + strings.ToUpper(text)
		}
	}

	if docType, ok := matchKeywords(haystack); ok {
		return c.fallback.classifyAs(docType, 1)
	}
	return c.fallback.Classify(ctx, content, name, mimeType)
}

func (c *KeywordClassifier) pdfText(ctx context.Context, content []byte) (string, error) {
	var text string
	run := func(context.Context) error {
		var err error
		text, err = extractPDFText(content)
		return err
	}
	if c.executor == nil {
		return text, run(ctx)
	}
	err := c.executor.Execute(ctx, "classifier.pdf_text", run, nil)
	return text, err
}

func matchKeywords(haystack string) (models.DocumentType, bool) {
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if containsWord(haystack, kw) {
				return rule.docType, true
			}
		}
	}
	return "", false
}

// containsWord reports whether kw occurs in s delimited by non-alphanumerics.
func containsWord(s, kw string) bool {
	for from := 0; ; {
		idx := strings.Index(s[from:], kw)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(kw)
		if (start == 0 || !isAlnum(s[start-1])) && (end == len(s) || !isAlnum(s[end])) {
			return true
		}
		from = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func isPDF(mimeType string) bool {
	return strings.EqualFold(strings.TrimSpace(strings.Split(mimeType, ";")[0]), "application/pdf")
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewDocumentClassifier selects the classifier for mode.
func NewDocumentClassifier(mode string, templates *FieldTemplates, executor *resilience.Executor, logger *zap.Logger) DocumentClassifier {
	random := NewRandomClassifier(templates, nil)
	if strings.EqualFold(mode, ClassifierKeyword) {
		return NewKeywordClassifier(random, executor, logger)
	}
	return random
}
