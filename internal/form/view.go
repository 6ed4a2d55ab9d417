package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
	"imagestudio/internal/processing"
)

// ErrViewClosed is returned by operations on a torn down view.
var ErrViewClosed = errors.New("form: view closed")

const (
	defaultMaxUploadBytes = 10 << 20
	defaultRequestTimeout = 60 * time.Second
)

// Processor sends an upload to the image processing backend.
type Processor interface {
	Process(ctx context.Context, upload processing.Upload, tags []domain.Tag) ([]domain.ProcessedImage, error)
}

// Options configures views created directly or through a Store.
type Options struct {
	Processor      Processor
	Logger         *infra.Logger
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Clock          func() time.Time
}

// NoticeKind classifies a user facing notice.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is the message shown above the form after an interaction.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// SelectedFile is the raw upload held by a view until the next selection.
type SelectedFile struct {
	Name string
	MIME string
	Data []byte
}

// View holds one visitor's form state: the selected file and its preview, the
// checked transformations, the latest result set and the loading flag.
type View struct {
	id        string
	processor Processor
	logger    infra.Logger
	maxUpload int64
	timeout   time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	file       *SelectedFile
	preview    string
	tags       map[domain.Tag]struct{}
	results    []domain.ProcessedImage
	notice     *Notice
	inflight   *Submission
	lastActive time.Time
	closed     bool
}

// NewView builds a view bound to the processor in opts.
func NewView(id string, opts Options) *View {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		id:         id,
		processor:  opts.Processor,
		logger:     logger.With().Str("view_id", id).Logger(),
		maxUpload:  maxUpload,
		timeout:    timeout,
		now:        now,
		ctx:        ctx,
		cancel:     cancel,
		tags:       make(map[domain.Tag]struct{}),
		lastActive: now(),
	}
}

// ID returns the view identifier.
func (v *View) ID() string {
	return v.id
}

// SelectFile replaces the selected file with the contents of r and derives the
// preview. Any outstanding submission is cancelled. On a read failure both the
// file and the preview are cleared.
func (v *View) SelectFile(name string, r io.Reader) error {
	data, readErr := v.readUpload(r)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	v.touch()
	v.abortLocked()
	return v.applyFileLocked(name, data, readErr)
}

func (v *View) readUpload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("form: read file: %w", err)
	}
	if int64(len(data)) > v.maxUpload {
		return nil, fmt.Errorf("form: %w: limit is %d bytes", domain.ErrFileTooLarge, v.maxUpload)
	}
	return data, nil
}

func (v *View) applyFileLocked(name string, data []byte, err error) error {
	if err != nil {
		v.file = nil
		v.preview = ""
		v.notice = &Notice{Kind: NoticeError, Message: "Could not read the selected file: " + err.Error()}
		v.logger.Warn().Err(err).Str("file", name).Msg("file selection failed")
		return err
	}
	mime := http.DetectContentType(data)
	v.file = &SelectedFile{Name: name, MIME: mime, Data: data}
	v.preview = PreviewURL(mime, data)
	v.notice = nil
	v.logger.Debug().Str("file", name).Str("mime", mime).Int("bytes", len(data)).Msg("file selected")
	return nil
}

// ToggleTag adds tag to the selection when selected is true and removes it
// otherwise. Unknown tags leave the selection untouched.
func (v *View) ToggleTag(tag string, selected bool) error {
	parsed, err := domain.ParseTag(tag)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	v.touch()
	v.toggleLocked(parsed, selected)
	return nil
}

// SetTags makes the selection equal to tags, as posted by a full checkbox
// form. The selection is unchanged if any tag is unknown.
func (v *View) SetTags(tags []string) error {
	want, err := parseTags(tags)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	v.touch()
	v.setTagsLocked(want)
	return nil
}

func parseTags(tags []string) (map[domain.Tag]bool, error) {
	want := make(map[domain.Tag]bool, len(tags))
	for _, raw := range tags {
		parsed, err := domain.ParseTag(raw)
		if err != nil {
			return nil, err
		}
		want[parsed] = true
	}
	return want, nil
}

func (v *View) setTagsLocked(want map[domain.Tag]bool) {
	for _, tr := range domain.Catalog() {
		v.toggleLocked(tr.Tag, want[tr.Tag])
	}
}

func (v *View) toggleLocked(tag domain.Tag, selected bool) {
	if selected {
		v.tags[tag] = struct{}{}
		return
	}
	delete(v.tags, tag)
}

// Notify replaces the current notice.
func (v *View) Notify(kind NoticeKind, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notice = &Notice{Kind: kind, Message: message}
}

// SubmitInput is what a full form post applies before dispatching.
type SubmitInput struct {
	// File replaces the selection when non-nil.
	File     io.Reader
	FileName string
	// SetTags replaces the tag selection with Tags.
	SetTags   bool
	Tags      []string
	RequestID string
}

// Submit dispatches the selected file and tags to the backend. It returns
// domain.ErrNoFile without any network call when nothing is selected and
// domain.ErrSubmissionInFlight while a previous submission is outstanding.
func (v *View) Submit() (*Submission, error) {
	return v.SubmitWith(SubmitInput{})
}

// SubmitWith applies in and dispatches as one step. While a submission is
// outstanding it returns domain.ErrSubmissionInFlight and leaves the view
// untouched; the running submission keeps going.
func (v *View) SubmitWith(in SubmitInput) (*Submission, error) {
	var want map[domain.Tag]bool
	if in.SetTags {
		parsed, err := parseTags(in.Tags)
		if err != nil {
			return nil, err
		}
		want = parsed
	}
	if v.Loading() {
		return nil, domain.ErrSubmissionInFlight
	}
	var (
		data    []byte
		readErr error
	)
	if in.File != nil {
		data, readErr = v.readUpload(in.File)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrViewClosed
	}
	v.touch()
	if v.inflight != nil {
		return nil, domain.ErrSubmissionInFlight
	}
	if in.File != nil {
		if err := v.applyFileLocked(in.FileName, data, readErr); err != nil {
			return nil, err
		}
	}
	if want != nil {
		v.setTagsLocked(want)
	}
	return v.dispatchLocked(in.RequestID)
}

func (v *View) dispatchLocked(requestID string) (*Submission, error) {
	if v.file == nil {
		v.notice = &Notice{Kind: NoticeError, Message: "Please select an image."}
		return nil, domain.ErrNoFile
	}
	if v.processor == nil {
		return nil, errors.New("form: no processor configured")
	}

	upload := processing.Upload{
		Filename: v.file.Name,
		MIME:     v.file.MIME,
		Data:     v.file.Data,
	}
	tags := v.selectedTagsLocked()
	ctx, cancel := context.WithTimeout(v.ctx, v.timeout)
	if requestID != "" {
		ctx = processing.WithRequestID(ctx, requestID)
	}
	sub := &Submission{cancel: cancel, done: make(chan struct{})}
	v.inflight = sub
	v.logger.Info().Str("file", upload.Filename).Int("tags", len(tags)).Str("request_id", requestID).Msg("submission dispatched")

	go v.run(ctx, sub, upload, tags)
	return sub, nil
}

func (v *View) run(ctx context.Context, sub *Submission, upload processing.Upload, tags []domain.Tag) {
	defer sub.cancel()
	images, err := v.processor.Process(ctx, upload, tags)
	v.settle(sub, images, err)
}

func (v *View) settle(sub *Submission, images []domain.ProcessedImage, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	defer close(sub.done)

	if v.inflight == sub {
		v.inflight = nil
	}
	switch {
	case sub.aborted.Load():
		sub.err = fmt.Errorf("form: submission cancelled: %w", context.Canceled)
		v.logger.Info().Msg("submission cancelled")
	case err != nil:
		sub.err = err
		v.notice = &Notice{Kind: NoticeError, Message: "Error processing image: " + err.Error()}
		v.logger.Error().Err(err).Msg("submission failed")
	default:
		v.results = append([]domain.ProcessedImage(nil), images...)
		v.notice = &Notice{Kind: NoticeInfo, Message: fmt.Sprintf("Processed %d image(s).", len(images))}
		v.logger.Info().Int("images", len(images)).Msg("submission succeeded")
	}
}

func (v *View) abortLocked() {
	if v.inflight != nil {
		v.inflight.Cancel()
	}
}

func (v *View) selectedTagsLocked() []domain.Tag {
	tags := make([]domain.Tag, 0, len(v.tags))
	for _, tr := range domain.Catalog() {
		if _, ok := v.tags[tr.Tag]; ok {
			tags = append(tags, tr.Tag)
		}
	}
	return tags
}

func (v *View) touch() {
	v.lastActive = v.now()
}

// Loading reports whether a submission is outstanding.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inflight != nil
}

// Snapshot returns a copy of the current state for rendering.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := State{
		ID:         v.id,
		PreviewURL: v.preview,
		Tags:       v.selectedTagsLocked(),
		Results:    append([]domain.ProcessedImage(nil), v.results...),
		Loading:    v.inflight != nil,
	}
	if v.file != nil {
		st.FileName = v.file.Name
		st.HasFile = true
	}
	if v.notice != nil {
		n := *v.notice
		st.Notice = &n
	}
	return st
}

// Close tears the view down and cancels any outstanding submission.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.abortLocked()
	v.cancel()
}

func (v *View) idleFor(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.lastActive)
}
