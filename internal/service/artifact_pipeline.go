package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchConcurrency = 4
	cleanupTimeout          = 10 * time.Second
)

// PipelineOptions tunes an ArtifactPipeline
type PipelineOptions struct {
	// Timeout bounds one pipeline run; zero means no deadline beyond the caller's.
	Timeout          time.Duration
	BatchConcurrency int
	// CleanupOnFailure deletes objects written by a run that later failed.
	// When false the orphans are only logged.
	CleanupOnFailure bool
}

// ArtifactPipeline stores uploads, stamps a QR code that points at a public
// URL into a derived PDF, stores that PDF and records the pair.
type ArtifactPipeline struct {
	store      *ArtifactStore
	encoder    domain.CodeEncoder
	compositor domain.DocumentCompositor
	recorder   domain.MetadataRecorder
	keys       *KeyAllocator
	observer   PipelineObserver
	logger     domain.Logger
	opts       PipelineOptions
	newID      func() string
	now        func() time.Time
}

// NewArtifactPipeline creates a new pipeline. A nil observer disables metrics.
func NewArtifactPipeline(
	blobs domain.BlobStore,
	encoder domain.CodeEncoder,
	compositor domain.DocumentCompositor,
	recorder domain.MetadataRecorder,
	keys *KeyAllocator,
	observer PipelineObserver,
	logger domain.Logger,
	opts PipelineOptions,
) *ArtifactPipeline {
	if observer == nil {
		observer = nopObserver{}
	}
	if keys == nil {
		keys = NewKeyAllocator()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	return &ArtifactPipeline{
		store:      NewArtifactStore(blobs, observer),
		encoder:    encoder,
		compositor: compositor,
		recorder:   recorder,
		keys:       keys,
		observer:   observer,
		logger:     logger,
		opts:       opts,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// plan is the composition strategy, fixed once at entry
type plan interface {
	variant() domain.Variant
	compose(c domain.DocumentCompositor, overlay []byte) (*domain.DerivedDocument, error)
}

type pdfOriginalPlan struct {
	upload domain.RawUpload
}

func (pdfOriginalPlan) variant() domain.Variant { return domain.VariantPDFOriginal }

func (p pdfOriginalPlan) compose(c domain.DocumentCompositor, overlay []byte) (*domain.DerivedDocument, error) {
	return c.EmbedOverlay(p.upload.Bytes, overlay)
}

type otherSingleFilePlan struct {
	upload domain.RawUpload
}

func (otherSingleFilePlan) variant() domain.Variant { return domain.VariantOtherSingleFile }

func (p otherSingleFilePlan) compose(c domain.DocumentCompositor, overlay []byte) (*domain.DerivedDocument, error) {
	return c.ComposeFromImages([][]byte{p.upload.Bytes}, overlay)
}

type imageBatchPlan struct {
	uploads []domain.RawUpload
}

func (imageBatchPlan) variant() domain.Variant { return domain.VariantImageBatch }

func (p imageBatchPlan) compose(c domain.DocumentCompositor, overlay []byte) (*domain.DerivedDocument, error) {
	images := make([][]byte, len(p.uploads))
	for i, u := range p.uploads {
		images[i] = u.Bytes
	}
	return c.ComposeFromImages(images, overlay)
}

func (p imageBatchPlan) names() string {
	names := make([]string, len(p.uploads))
	for i, u := range p.uploads {
		names[i] = u.OriginalName
	}
	return strings.Join(names, ", ")
}

// run is the state of one pass through the pipeline
type run struct {
	variant domain.Variant
	stage   domain.Stage
	written []string
	started time.Time
}

// IngestSingleFile stores one file and produces its stamped PDF. PDFs get
// the code on their own first page, pointing at the stamped copy; images
// are wrapped in a one-page PDF whose code points at the original.
func (p *ArtifactPipeline) IngestSingleFile(ctx context.Context, upload domain.RawUpload) (*domain.IngestResult, error) {
	pl, err := resolveSingle(upload)
	if err != nil {
		return nil, p.reject(upload.OriginalName, err)
	}
	return p.execute(ctx, pl)
}

// IngestImageBatch composes all images into one PDF, in order, and returns
// its URL. With allMustBeImages a single non-image rejects the batch;
// otherwise non-images are skipped.
func (p *ArtifactPipeline) IngestImageBatch(ctx context.Context, uploads []domain.RawUpload, allMustBeImages bool) (*domain.IngestResult, error) {
	pl, err := p.resolveImageBatch(uploads, allMustBeImages)
	if err != nil {
		return nil, p.reject(fmt.Sprintf("%d files", len(uploads)), err)
	}
	return p.execute(ctx, pl)
}

// IngestFileBatch runs one independent pipeline per upload. Results come
// back in input order; a failed item never affects the others.
func (p *ArtifactPipeline) IngestFileBatch(ctx context.Context, uploads []domain.RawUpload) []domain.ItemResult {
	results := make([]domain.ItemResult, len(uploads))

	var g errgroup.Group
	g.SetLimit(p.opts.BatchConcurrency)
	for i, upload := range uploads {
		g.Go(func() error {
			result, err := p.IngestSingleFile(ctx, upload)
			results[i] = itemResult(i, upload.OriginalName, result, err)
			return nil
		})
	}
	_ = g.Wait()

	recorded := 0
	for _, r := range results {
		if r.Succeeded() {
			recorded++
		}
	}
	p.logger.Info("File batch finished", "items", len(uploads), "recorded", recorded, "failed", len(uploads)-recorded)
	return results
}

func resolveSingle(upload domain.RawUpload) (plan, error) {
	if upload.Size() == 0 {
		return nil, apperrors.NewValidationError(domain.ErrEmptyUpload.Error(), upload.OriginalName)
	}
	mimeType := domain.NormalizeMimeType(upload.MimeType, upload.OriginalName)
	upload.MimeType = mimeType
	switch {
	case domain.IsPDF(mimeType):
		return pdfOriginalPlan{upload: upload}, nil
	case domain.IsAllowedImage(mimeType):
		return otherSingleFilePlan{upload: upload}, nil
	default:
		return nil, apperrors.NewUnsupportedMediaTypeError("unsupported file type", fmt.Sprintf("%s (%s)", upload.OriginalName, mimeType))
	}
}

func (p *ArtifactPipeline) resolveImageBatch(uploads []domain.RawUpload, allMustBeImages bool) (plan, error) {
	if len(uploads) == 0 {
		return nil, apperrors.NewValidationError(domain.ErrEmptyBatch.Error())
	}

	images := make([]domain.RawUpload, 0, len(uploads))
	for _, u := range uploads {
		mimeType := domain.NormalizeMimeType(u.MimeType, u.OriginalName)
		usable := domain.IsAllowedImage(mimeType) && u.Size() > 0
		if !usable {
			if allMustBeImages {
				return nil, apperrors.NewUnsupportedMediaTypeError("all files must be non-empty images",
					fmt.Sprintf("%s (%s)", u.OriginalName, mimeType))
			}
			p.logger.Warn("Skipping non-image file in image batch", "name", u.OriginalName, "mime_type", mimeType, "size", u.Size())
			continue
		}
		u.MimeType = mimeType
		images = append(images, u)
	}

	if len(images) == 0 {
		return nil, apperrors.NewUnsupportedMediaTypeError("no images in batch")
	}
	return imageBatchPlan{uploads: images}, nil
}

// reject accounts for an upload refused before the pipeline started
func (p *ArtifactPipeline) reject(name string, err error) error {
	p.observer.RecordFailure(string(apperrors.TypeOf(err)), domain.StageReceived)
	p.logger.Warn("Upload rejected", "name", name, "error", err)
	return &domain.StageError{Stage: domain.StageReceived, Err: err}
}

func (p *ArtifactPipeline) execute(ctx context.Context, pl plan) (*domain.IngestResult, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	r := &run{variant: pl.variant(), stage: domain.StageReceived, started: p.now()}
	result, err := p.runPlan(ctx, r, pl)
	if err == nil && !r.stage.Terminal() {
		result, err = nil, apperrors.NewInternalError("pipeline stopped early", fmt.Errorf("stage %s", r.stage))
	}
	if err != nil {
		err = p.fail(ctx, r, err)
	}
	p.observer.RecordRun(r.variant, p.now().Sub(r.started), err)
	return result, err
}

func (p *ArtifactPipeline) runPlan(ctx context.Context, r *run, pl plan) (*domain.IngestResult, error) {
	var (
		originalName string
		originalURL  string
		reservation  domain.Reservation
		payload      string
	)

	// RECEIVED -> ORIGINAL_STORED -> URL_RESOLVED
	switch pl := pl.(type) {
	case pdfOriginalPlan:
		original, err := p.storeOriginal(ctx, r, pl.upload)
		if err != nil {
			return nil, err
		}
		originalName, originalURL = pl.upload.OriginalName, original.PublicURL
		reservation = p.store.Reserve(DerivedKeyForPDF(original.Key))
		payload = reservation.PublicURL

	case otherSingleFilePlan:
		original, err := p.storeOriginal(ctx, r, pl.upload)
		if err != nil {
			return nil, err
		}
		originalName, originalURL = pl.upload.OriginalName, original.PublicURL
		reservation = p.store.Reserve(DerivedKeyForFile(original.Key))
		payload = original.PublicURL

	case imageBatchPlan:
		// image batches keep no originals
		p.advance(r, "images", len(pl.uploads))
		originalName = pl.names()
		reservation = p.store.Reserve(p.keys.ComposedKey(pl.uploads[0].OriginalName))
		payload = reservation.PublicURL

	default:
		return nil, apperrors.NewInternalError("unknown pipeline plan", fmt.Errorf("%T", pl))
	}
	p.advance(r, "derived_key", reservation.Key, "payload", payload)

	// URL_RESOLVED -> CODE_READY
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, err := p.encoder.Encode(payload)
	if err != nil {
		return nil, err
	}
	p.advance(r, "code_bytes", len(code.ImageBytes))

	// CODE_READY -> DERIVED_COMPOSED
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := pl.compose(p.compositor, code.ImageBytes)
	if err != nil {
		return nil, err
	}
	p.advance(r, "source_kind", doc.SourceKind, "pages", doc.PageCount)

	// DERIVED_COMPOSED -> DERIVED_STORED
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	derived, written, err := p.store.Commit(ctx, reservation, doc.Bytes, domain.MimeTypePDF)
	if written {
		r.written = append(r.written, reservation.Key)
	}
	if err != nil {
		return nil, err
	}
	p.advance(r, "key", derived.Key)

	// DERIVED_STORED -> RECORDED
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record := &domain.UploadRecord{
		ID:           p.newID(),
		OriginalName: originalName,
		OriginalURL:  originalURL,
		DerivedURL:   derived.PublicURL,
		CreatedAt:    p.now().UTC(),
	}
	recordID, err := p.recorder.RecordUpload(ctx, record)
	if err != nil {
		return nil, recordError(err)
	}
	p.advance(r, "record_id", recordID)

	p.logger.Info("Artifact recorded",
		"variant", r.variant,
		"record_id", recordID,
		"derived_url", derived.PublicURL,
		"pages", doc.PageCount,
	)
	return &domain.IngestResult{
		OriginalURL: originalURL,
		DerivedURL:  derived.PublicURL,
		RecordID:    recordID,
		PageCount:   doc.PageCount,
	}, nil
}

func (p *ArtifactPipeline) storeOriginal(ctx context.Context, r *run, upload domain.RawUpload) (*domain.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := p.keys.OriginalKey(upload.OriginalName)
	obj, written, err := p.store.Store(ctx, key, upload.Bytes, upload.MimeType)
	if written {
		r.written = append(r.written, key)
	}
	if err != nil {
		return nil, err
	}
	p.advance(r, "key", key, "size", upload.Size())
	return obj, nil
}

// advance moves the run one stage along the success path
func (p *ArtifactPipeline) advance(r *run, fields ...interface{}) {
	from := r.stage
	to := from.Next()
	r.stage = to
	p.logger.Debug("Pipeline transition", append([]interface{}{"variant", r.variant, "from", from, "to", to}, fields...)...)
}

// fail moves the run to FAILED, classifying deadline errors as timeouts,
// and deals with whatever the run already wrote.
func (p *ArtifactPipeline) fail(ctx context.Context, r *run, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded) && !isInputError(err):
		err = apperrors.NewTimeoutError("pipeline deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		err = apperrors.NewInternalError("pipeline canceled", err)
	}

	kind := apperrors.TypeOf(err)
	stageErr := &domain.StageError{Stage: r.stage, Err: err}
	p.observer.RecordFailure(string(kind), r.stage)
	p.logger.Error("Pipeline failed", err, "variant", r.variant, "stage", r.stage, "kind", kind)

	if len(r.written) > 0 {
		if p.opts.CleanupOnFailure {
			p.cleanup(ctx, r.written)
		} else {
			p.logger.Warn("Objects orphaned by failed run", "keys", r.written, "stage", r.stage)
		}
	}
	r.stage = domain.StageFailed
	return stageErr
}

func (p *ArtifactPipeline) cleanup(ctx context.Context, keys []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			p.logger.Warn("Cleanup failed, object orphaned", "key", key, "error", err)
			continue
		}
		p.logger.Debug("Cleaned up object from failed run", "key", key)
	}
}

// isInputError reports failures caused by the upload itself, which keep
// their kind even if the deadline passed meanwhile.
func isInputError(err error) bool {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeEncoding,
		apperrors.ErrorTypeMalformedDocument, apperrors.ErrorTypeUnsupportedMediaType:
		return true
	}
	return false
}

func recordError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewRecordError("record upload", err)
}

func itemResult(index int, name string, result *domain.IngestResult, err error) domain.ItemResult {
	item := domain.ItemResult{Index: index, OriginalName: name}
	if err != nil {
		stage := domain.StageReceived
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		item.Status = domain.ItemStatusFailed
		item.Failure = &domain.Failure{
			Kind:    string(apperrors.TypeOf(err)),
			Stage:   stage,
			Message: err.Error(),
		}
		return item
	}
	item.Status = domain.ItemStatusRecorded
	item.Result = result
	return item
}

var _ domain.ArtifactService = (*ArtifactPipeline)(nil)
