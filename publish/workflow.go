// Package publish implements the newsroom publish workflow: upload the cover
// image, resolve its public URL and insert the news record.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/metrics"
	"github.com/quilpalta/alpalo/news"
)

const (
	// DefaultBucket holds the cover images.
	DefaultBucket = "imagenes-noticias"

	// SuccessMessage is shown after a publish went through.
	SuccessMessage = "¡Noticia de Directo Al Palo publicada correctamente!"

	// GenericMessage is shown when a failure carries no service text.
	GenericMessage = "Hubo un error al publicar."

	// BusyMessage is shown while a submission of the same form is running.
	BusyMessage = "Subiendo datos..."

	imageCacheControl = "max-age=3600"
)

// Step names the workflow stage an error came from.
type Step string

const (
	StepImage  Step = "image"
	StepUpload Step = "upload"
	StepInsert Step = "insert"
)

// Submission is the input of one publish.
type Submission struct {
	Title    string
	Author   string
	Category news.Category
	Body     string
	Image    *Image
}

// Error reports the failed step of a publish.
type Error struct {
	Step Step
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish: %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the text shown in the failure alert: the backend's own
// message when it sent one, GenericMessage otherwise.
func (e *Error) UserMessage() string {
	var svc interface{ ServiceMessage() string }
	if errors.As(e.Err, &svc) {
		if msg := svc.ServiceMessage(); msg != "" {
			return msg
		}
	}
	return GenericMessage
}

// UserMessage maps any error from the publish path to alert text.
func UserMessage(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.UserMessage()
	}
	return GenericMessage
}

// Notifier is told about every published item.
type Notifier interface {
	NewsPublished(ctx context.Context, it news.Item) error
}

// Workflow runs publishes against a storage and a record store.
type Workflow struct {
	storage news.ObjectStorage
	records news.RecordStore

	bucket   string
	maxWidth int
	now      func() time.Time
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithBucket sets the bucket cover images are uploaded to.
func WithBucket(bucket string) Option {
	return func(w *Workflow) { w.bucket = bucket }
}

// WithClock sets the time source used for storage keys.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithImageMaxWidth re-encodes cover images as JPEG no wider than px.
// Zero uploads the bytes as received.
func WithImageMaxWidth(px int) Option {
	return func(w *Workflow) { w.maxWidth = px }
}

// WithNotifier announces every published item.
func WithNotifier(n Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

// WithMetrics records outcomes and step timings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithLogger sets the workflow logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// New returns a workflow uploading to storage and inserting into records.
func New(storage news.ObjectStorage, records news.RecordStore, opts ...Option) *Workflow {
	w := &Workflow{
		storage: storage,
		records: records,
		bucket:  DefaultBucket,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Publish stores the submission. Without an image it only inserts the record.
// With one it uploads the image first and aborts when that fails. A failed
// insert after a successful upload leaves the uploaded object in place.
//
// Publish does not validate; callers run Form.Validate first.
func (w *Workflow) Publish(ctx context.Context, s Submission) (news.Item, error) {
	var imageURL, key string
	if s.Image != nil && len(s.Image.Data) > 0 {
		img := *s.Image
		if w.maxWidth > 0 {
			normalized, err := NormalizeImage(img, w.maxWidth)
			if err != nil {
				w.metrics.Published(string(StepImage))
				return news.Item{}, &Error{Step: StepImage, Err: err}
			}
			img = normalized
		}

		key = ObjectKey(w.now(), img.Name)
		start := time.Now()
		err := w.storage.Upload(ctx, w.bucket, key, img.Data, news.UploadOptions{
			ContentType:  img.ContentType,
			CacheControl: imageCacheControl,
		})
		w.metrics.ObserveStep(string(StepUpload), time.Since(start))
		if err != nil {
			w.logger.Error("image upload failed",
				zap.String("bucket", w.bucket), zap.String("key", key), zap.Error(err))
			w.metrics.Published(string(StepUpload))
			return news.Item{}, &Error{Step: StepUpload, Err: err}
		}
		imageURL = w.storage.PublicURL(w.bucket, key)
	}

	start := time.Now()
	it, err := w.records.Insert(ctx, news.Draft{
		Title:    s.Title,
		Category: s.Category,
		Body:     s.Body,
		Author:   s.Author,
		ImageURL: imageURL,
	})
	w.metrics.ObserveStep(string(StepInsert), time.Since(start))
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if key != "" {
			w.metrics.Orphaned()
			fields = append(fields, zap.String("orphaned_key", key))
		}
		w.logger.Error("news insert failed", fields...)
		w.metrics.Published(string(StepInsert))
		return news.Item{}, &Error{Step: StepInsert, Err: err}
	}

	w.metrics.Published("ok")
	w.logger.Info("news published",
		zap.String("id", it.ID), zap.String("category", string(it.Category)))

	if w.notifier != nil {
		if err := w.notifier.NewsPublished(ctx, it); err != nil {
			w.logger.Warn("publish notification failed", zap.String("id", it.ID), zap.Error(err))
		}
	}
	return it, nil
}
