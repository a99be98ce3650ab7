// Package reader turns draft screenshots into matched card regions.
//
// A Reader owns the visible Session and at most one in-flight extraction.
// Reload supersedes the in-flight run: it cancels it and waits for the worker
// to stop before the run's image buffer is released.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"draft-reader/internal/calibration"
	"draft-reader/internal/extract"
	"draft-reader/internal/match"
)

var (
	// ErrSourceMissing means the screenshot path does not name a readable file.
	ErrSourceMissing = errors.New("source image does not exist")
	// ErrDecode means the screenshot could not be decoded.
	ErrDecode = errors.New("failed to decode source image")
	// ErrNoSession means no reload has completed yet.
	ErrNoSession = errors.New("no completed session")
)

// Image is a decoded screenshot. The reader closes it when its run is
// superseded or its session is replaced.
type Image interface {
	Width() int
	Height() int
	Close() error
}

// Decoder loads a screenshot from disk.
type Decoder interface {
	Decode(path string) (Image, error)
}

// Detector finds card-name regions and their candidate texts. profile is nil
// when the image resolution has no calibration.
type Detector interface {
	Detect(ctx context.Context, img Image, profile *calibration.Profile, progress func(float64)) ([]extract.Extraction, error)
}

// Renderer draws match results over a copy of img and writes it to path.
type Renderer interface {
	Render(img Image, results []MatchResult, path string) error
}

// run is one supervised extraction.
type run struct {
	session *Session
	task    *extract.Task
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Reader supervises screenshot extraction and matching.
type Reader struct {
	decoder  Decoder
	detector Detector
	renderer Renderer
	matcher  *match.Matcher

	// Debug enables per-region logging.
	Debug bool

	ctx      context.Context
	shutdown context.CancelFunc

	control sync.Mutex // serializes Reload, Cancel and Close

	mu        sync.RWMutex
	session   *Session
	pending   *run
	last      *run // most recently finished run
	listeners map[EventType][]EventListener
}

// New creates a reader.
func New(decoder Decoder, detector Detector, renderer Renderer, matcher *match.Matcher) *Reader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reader{
		decoder:   decoder,
		detector:  detector,
		renderer:  renderer,
		matcher:   matcher,
		ctx:       ctx,
		shutdown:  cancel,
		listeners: make(map[EventType][]EventListener),
	}
}

// Reload starts recognizing the screenshot at path against card set setCode.
// It returns once the new extraction is running; completion is reported via
// EventFinished or EventFailed, or by Wait. On error the visible session and
// any in-flight run are left untouched.
func (r *Reader) Reload(setCode, path string) error {
	r.control.Lock()
	defer r.control.Unlock()

	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("reader closed: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		log.Printf("Reader: source image does not exist: %s", path)
		return fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}

	img, err := r.decoder.Decode(path)
	if err != nil {
		log.Printf("Reader: failed to decode %s: %v", path, err)
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	r.cancelPending()

	sess := newSession(setCode, path, img)
	if sess.Calibrated() {
		log.Printf("Reader: %s %s using calibration %s (%d regions)",
			sess.ID, path, sess.Profile.Key(), sess.Profile.Count())
	} else {
		log.Printf("Reader: %s %s has no calibration for %dx%d, using contour detection",
			sess.ID, path, sess.Width, sess.Height)
	}

	profile := sess.Profile
	task := extract.NewTask(func(ctx context.Context, progress func(float64)) ([]extract.Extraction, error) {
		return r.detector.Detect(ctx, img, profile, progress)
	})

	ctx, cancel := context.WithCancel(r.ctx)
	p := &run{session: sess, task: task, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.pending = p
	r.mu.Unlock()

	r.Emit(EventStarted, sess)
	r.Emit(EventProgress, 0.0)

	if err := task.Start(ctx); err != nil {
		cancel()
		img.Close()
		r.mu.Lock()
		r.pending = nil
		r.mu.Unlock()
		close(p.done)
		return err
	}

	go r.supervise(ctx, p)
	return nil
}

// supervise forwards progress, then matches and publishes a completed run.
func (r *Reader) supervise(ctx context.Context, p *run) {
	defer close(p.done)
	defer p.cancel()

	for progress := range p.task.Progress() {
		r.Emit(EventProgress, progress)
	}

	res := p.task.Wait()
	sess := p.session

	switch res.State {
	case extract.StateCancelled:
		log.Printf("Reader: %s cancelled", sess.ID)
		r.discard(p, extract.ErrCancelled)
		return
	case extract.StateFailed:
		log.Printf("Reader: %s extraction failed: %v", sess.ID, res.Err)
		r.discard(p, res.Err)
		r.Emit(EventFailed, res.Err)
		return
	}

	results, err := r.matchAll(ctx, sess.SetCode, res.Extractions)
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("Reader: %s cancelled while matching", sess.ID)
			r.discard(p, extract.ErrCancelled)
			return
		}
		log.Printf("Reader: %s matching failed: %v", sess.ID, err)
		r.discard(p, err)
		r.Emit(EventFailed, err)
		return
	}

	sess.Results = results
	sess.Complete = true
	sess.FinishedAt = time.Now()

	r.mu.Lock()
	old := r.session
	r.session = sess
	r.last = p
	if r.pending == p {
		r.pending = nil
	}
	r.mu.Unlock()

	if old != nil {
		old.image.Close()
	}

	log.Printf("Reader: %s matched %d of %d regions in %s",
		sess.ID, sess.MatchedCount(), len(results), sess.FinishedAt.Sub(sess.StartedAt).Round(time.Millisecond))

	r.Emit(EventProgress, 1.0)
	r.Emit(EventFinished, sess)
}

// discard drops a run that will never become visible and releases its image.
func (r *Reader) discard(p *run, err error) {
	p.err = err
	p.session.image.Close()

	r.mu.Lock()
	r.last = p
	if r.pending == p {
		r.pending = nil
	}
	r.mu.Unlock()
}

// matchAll resolves every extraction, preferring candidate texts in order.
func (r *Reader) matchAll(ctx context.Context, set string, extractions []extract.Extraction) ([]MatchResult, error) {
	results := make([]MatchResult, 0, len(extractions))
	for _, ex := range extractions {
		card, err := r.matcher.Region(ctx, set, ex.Texts)
		if err != nil {
			return nil, err
		}
		if r.Debug {
			name := "-"
			if card != nil {
				name = card.Name
			}
			log.Printf("Reader: region %v texts=%q card=%s", ex.Region.Rect, ex.Texts, name)
		}
		results = append(results, MatchResult{Region: ex.Region, Texts: ex.Texts, Card: card})
	}
	return results, nil
}

// cancelPending cancels the in-flight run, if any, and blocks until its
// worker and supervisor have stopped. Caller holds r.control.
func (r *Reader) cancelPending() {
	r.mu.RLock()
	p := r.pending
	r.mu.RUnlock()
	if p == nil {
		return
	}

	p.task.Cancel()
	p.cancel()
	<-p.done
}

// Cancel stops the in-flight run, if any, and waits for it. The visible
// session is kept.
func (r *Reader) Cancel() {
	r.control.Lock()
	defer r.control.Unlock()
	r.cancelPending()
}

// Wait blocks until the in-flight run has been fully processed. With no run
// in flight it reports the most recently finished one. It returns nil on
// completion (or before any run), extract.ErrCancelled if the run was
// cancelled or superseded, or the extraction/matching error.
func (r *Reader) Wait() error {
	r.mu.RLock()
	p := r.pending
	if p == nil {
		p = r.last
	}
	r.mu.RUnlock()
	if p == nil {
		return nil
	}

	<-p.done
	return p.err
}

// Running reports whether an extraction is in flight.
func (r *Reader) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending != nil
}

// Session returns the visible session, or nil before the first completed run.
// The returned value must be treated as read-only.
func (r *Reader) Session() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// MatchedCardIDs returns the catalog ids of every region that resolved to a card.
func (r *Reader) MatchedCardIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return nil
	}
	return r.session.CardIDs()
}

// RenderAnnotatedImage writes the visible session's screenshot with matched
// regions outlined and named, and unmatched regions outlined in a second color.
func (r *Reader) RenderAnnotatedImage(path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess := r.session
	if sess == nil {
		return ErrNoSession
	}

	found := 0
	for _, m := range sess.Results {
		if m.Matched() {
			found++
			if r.Debug {
				log.Printf("Reader: found %q uri=%s", m.Card.Name, m.Card.ScryfallURI)
			}
		}
	}
	log.Printf("Reader: total found: %d", found)
	for _, m := range sess.Results {
		if !m.Matched() {
			log.Printf("Reader: not found %v texts=[%s]", m.Region.Rect, strings.Join(m.Texts, ","))
		}
	}

	if err := r.renderer.Render(sess.image, sess.Results, path); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return nil
}

// Close cancels any in-flight run and releases the visible session's image.
func (r *Reader) Close() error {
	r.control.Lock()
	defer r.control.Unlock()

	r.cancelPending()
	r.shutdown()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		err := r.session.image.Close()
		r.session.image = nil
		r.session = nil
		return err
	}
	return nil
}
