// Package verify orchestrates a verification call end to end: rasterize,
// OCR, field extraction, reconciliation, completeness, and registry
// matching. The orchestrator is the single place failure is absorbed and
// classified; Verify never returns an error, the verdict is the
// classification.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veridocproj/veridoc/internal/artifact"
	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/extract"
	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/match"
	"github.com/veridocproj/veridoc/internal/ocr"
	"github.com/veridocproj/veridoc/internal/raster"
	"github.com/veridocproj/veridoc/internal/registry"
)

// Status classifies a verification outcome. failed means the applicant's
// documents did not hold up; error means the call itself could not run.
// The two are never conflated.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
)

// DefaultWorkers bounds concurrent document pipelines per call.
const DefaultWorkers = 4

// DefaultRequired is the completeness policy when none is configured.
var DefaultRequired = []fields.Field{fields.FieldName, fields.FieldDOB, fields.FieldBoard}

// DocumentReport is the per-document evidence trail in a verdict.
type DocumentReport struct {
	Filename     string        `json:"filename"`
	Kind         artifact.Kind `json:"kind"`
	Skipped      bool          `json:"skipped,omitempty"`
	Pages        int           `json:"pages"`
	PagesFailed  int           `json:"pages_failed,omitempty"`
	Observations int           `json:"observations"`
	Err          string        `json:"error,omitempty"`
}

// Verdict is the terminal result of one verification call.
type Verdict struct {
	ID        string           `json:"id"`
	Valid     bool             `json:"valid"`
	Status    Status           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Fields    fields.Set       `json:"fields,omitempty"`
	Missing   []fields.Field   `json:"missing,omitempty"`
	Match     *match.Candidate `json:"match,omitempty"`
	Ambiguous bool             `json:"ambiguous,omitempty"`
	Documents []DocumentReport `json:"documents"`
}

// Rasterizer renders a document into pages.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc artifact.Document) (*raster.Pages, error)
}

// TextExtractor turns rendered pages into document text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, pages ocr.PageSource) (*ocr.Text, error)
}

// RecordSource supplies the registry records to match against.
type RecordSource interface {
	Records(ctx context.Context) ([]registry.Record, error)
}

var (
	_ Rasterizer    = (*raster.Rasterizer)(nil)
	_ TextExtractor = (*ocr.Extractor)(nil)
	_ RecordSource  = (*registry.Store)(nil)
)

// Config wires an Engine.
type Config struct {
	Rasterizer Rasterizer
	OCR        TextExtractor
	Strategy   extract.Strategy
	Registry   RecordSource // nil disables matching

	Required      []fields.Field // default DefaultRequired
	MatchRegistry bool
	Workers       int // default DefaultWorkers
	Logger        *slog.Logger
}

// Engine runs verification calls. It holds no per-call state; one Engine
// serves concurrent calls.
type Engine struct {
	rasterizer    Rasterizer
	ocr           TextExtractor
	strategy      extract.Strategy
	registry      RecordSource
	required      []fields.Field
	matchRegistry bool
	workers       int
	logger        *slog.Logger
}

// New creates a verification engine.
func New(cfg Config) *Engine {
	if len(cfg.Required) == 0 {
		cfg.Required = DefaultRequired
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		rasterizer:    cfg.Rasterizer,
		ocr:           cfg.OCR,
		strategy:      cfg.Strategy,
		registry:      cfg.Registry,
		required:      cfg.Required,
		matchRegistry: cfg.MatchRegistry,
		workers:       cfg.Workers,
		logger:        cfg.Logger,
	}
}

// docOutcome is one document's contribution to the fold.
type docOutcome struct {
	report    DocumentReport
	obs       []fields.Observation
	processed bool // reached OCR and produced a page trail
	hardOCR   bool // total hard extraction failure
	panicked  bool
	ctxErr    error
}

// Verify runs the full pipeline over the documents and classifies the
// outcome. Documents run concurrently under the worker limit; the
// reconciliation fold reads outcomes by index, so identical inputs yield
// identical verdict fields regardless of completion order.
func (e *Engine) Verify(ctx context.Context, docs []artifact.Document) (verdict *Verdict) {
	verdict = &Verdict{ID: uuid.New().String()}
	ctx = calllog.WithVerification(ctx, verdict.ID)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verification panic",
				"verification_id", verdict.ID,
				"panic", r)
			verdict.Valid = false
			verdict.Status = StatusError
			verdict.Reason = fmt.Sprintf("internal error: %v", r)
		}
	}()

	e.logger.Info("verification started",
		"verification_id", verdict.ID,
		"documents", len(docs),
		"strategy", e.strategy.Name())

	outcomes := make([]docOutcome, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range docs {
		doc := docs[i]
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = docOutcome{
						panicked: true,
						report: DocumentReport{
							Filename: doc.Filename,
							Kind:     doc.Kind,
							Err:      fmt.Sprintf("panic: %v", r),
						},
					}
				}
			}()
			outcomes[i] = e.processDocument(gctx, doc)
			return outcomes[i].ctxErr
		})
	}
	if err := g.Wait(); err != nil {
		return e.errorVerdict(verdict, fmt.Sprintf("verification cancelled: %v", err))
	}
	if err := ctx.Err(); err != nil {
		return e.errorVerdict(verdict, fmt.Sprintf("verification cancelled: %v", err))
	}

	var all []fields.Observation
	processed, hardFailed := 0, 0
	firstHard := ""
	verdict.Documents = make([]DocumentReport, len(outcomes))
	for i, out := range outcomes {
		verdict.Documents[i] = out.report
		if out.panicked {
			return e.errorVerdict(verdict, fmt.Sprintf("internal error: %s", out.report.Err))
		}
		if out.processed {
			processed++
		}
		if out.hardOCR {
			hardFailed++
			if firstHard == "" {
				firstHard = out.report.Err
			}
		}
		all = append(all, out.obs...)
	}

	// Text extraction broken for every document that reached it: the call
	// itself could not run, which is an error, not a failure.
	if processed > 0 && hardFailed == processed {
		return e.errorVerdict(verdict, firstHard)
	}

	verdict.Fields = fields.NewSet(all)

	if missing := verdict.Fields.Missing(e.required); len(missing) > 0 {
		verdict.Valid = false
		verdict.Status = StatusFailed
		verdict.Missing = missing
		verdict.Reason = fmt.Sprintf("missing required fields: %s", joinFields(missing))
		e.logger.Info("verification failed",
			"verification_id", verdict.ID,
			"missing", verdict.Reason)
		return verdict
	}

	if !e.matchRegistry || e.registry == nil {
		verdict.Valid = true
		verdict.Status = StatusSuccess
		e.logger.Info("verification succeeded",
			"verification_id", verdict.ID,
			"fields", len(verdict.Fields))
		return verdict
	}

	recs, err := e.registry.Records(ctx)
	if err != nil {
		return e.errorVerdict(verdict, fmt.Sprintf("registry unreadable: %v", err))
	}

	best, ambiguous := match.Best(verdict.Fields, recs)
	if best == nil {
		verdict.Valid = false
		verdict.Status = StatusFailed
		verdict.Reason = "no registry record matches the extracted fields"
		e.logger.Info("verification failed",
			"verification_id", verdict.ID,
			"reason", verdict.Reason)
		return verdict
	}

	verdict.Valid = true
	verdict.Status = StatusSuccess
	verdict.Match = best
	verdict.Ambiguous = ambiguous
	if ambiguous {
		e.logger.Warn("registry match ambiguous",
			"verification_id", verdict.ID,
			"record_id", best.Record.ID,
			"score", best.Score)
	}
	e.logger.Info("verification succeeded",
		"verification_id", verdict.ID,
		"record_id", best.Record.ID,
		"score", best.Score)
	return verdict
}

// processDocument runs one document through rasterize, OCR, and field
// extraction. Failures local to the document are absorbed into its report.
func (e *Engine) processDocument(ctx context.Context, doc artifact.Document) docOutcome {
	out := docOutcome{report: DocumentReport{Filename: doc.Filename, Kind: doc.Kind}}

	pages, err := e.rasterizer.Rasterize(ctx, doc)
	if err != nil {
		out.report.Err = err.Error()
		if errors.Is(err, artifact.ErrUnsupportedKind) {
			out.report.Skipped = true
			e.logger.Info("document skipped",
				"document", doc.Filename,
				"kind", doc.Kind)
		} else {
			e.logger.Warn("rasterization failed",
				"document", doc.Filename,
				"error", err)
		}
		out.ctxErr = ctx.Err()
		return out
	}

	text, err := e.ocr.Extract(ctx, doc.Filename, pages)
	if text != nil {
		out.report.Pages = text.PageCount()
		out.report.PagesFailed = text.PageCount() - text.SucceededPages()
	}
	if err != nil {
		out.report.Err = err.Error()
		var extErr *ocr.ExtractionError
		if errors.As(err, &extErr) {
			// The page trail exists; the document just produced nothing.
			out.processed = true
			out.hardOCR = true
			e.logger.Warn("text extraction failed hard",
				"document", doc.Filename,
				"error", err)
			return out
		}
		e.logger.Warn("text extraction failed",
			"document", doc.Filename,
			"error", err)
		out.ctxErr = ctx.Err()
		return out
	}
	out.processed = true

	obs, err := e.strategy.ExtractFields(ctx, text)
	if err != nil {
		out.report.Err = err.Error()
		out.ctxErr = ctx.Err()
		return out
	}
	out.obs = obs
	out.report.Observations = len(obs)
	return out
}

func (e *Engine) errorVerdict(verdict *Verdict, reason string) *Verdict {
	verdict.Valid = false
	verdict.Status = StatusError
	verdict.Reason = reason
	e.logger.Error("verification error",
		"verification_id", verdict.ID,
		"reason", reason)
	return verdict
}

// ChecklistFailure builds the verdict for a program document checklist that
// failed before any processing was worth starting.
func ChecklistFailure(program string, missing []string) *Verdict {
	return &Verdict{
		ID:     uuid.New().String(),
		Valid:  false,
		Status: StatusFailed,
		Reason: fmt.Sprintf("missing required documents for %s: %s", program, strings.Join(missing, ", ")),
	}
}

func joinFields(fs []fields.Field) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
