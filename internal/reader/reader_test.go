package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"draft-reader/internal/calibration"
	"draft-reader/internal/catalog"
	"draft-reader/internal/extract"
	"draft-reader/internal/match"
	"draft-reader/pkg/geometry"
)

// fakeImage scripts what the detector finds in a screenshot.
type fakeImage struct {
	name       string
	w, h       int
	texts      [][]string    // candidate texts per region, in region order
	blockAfter int           // detector parks after this many regions (0 = never)
	reached    chan struct{} // closed when the detector parks
	closed     atomic.Int32
}

func (f *fakeImage) Width() int  { return f.w }
func (f *fakeImage) Height() int { return f.h }
func (f *fakeImage) Close() error {
	f.closed.Add(1)
	return nil
}

type fakeDecoder struct {
	images map[string]*fakeImage
}

func (d *fakeDecoder) Decode(path string) (Image, error) {
	img, ok := d.images[path]
	if !ok {
		return nil, fmt.Errorf("unsupported image format")
	}
	return img, nil
}

type fakeDetector struct {
	mu        sync.Mutex
	events    []string
	active    atomic.Int32
	maxActive atomic.Int32
	violation atomic.Bool // detector saw a closed buffer
}

func (d *fakeDetector) record(ev string) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
}

func (d *fakeDetector) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *fakeDetector) Detect(ctx context.Context, img Image, profile *calibration.Profile, progress func(float64)) ([]extract.Extraction, error) {
	f := img.(*fakeImage)

	n := d.active.Add(1)
	if n > d.maxActive.Load() {
		d.maxActive.Store(n)
	}
	d.record("start " + f.name)
	defer func() {
		d.record("end " + f.name)
		d.active.Add(-1)
	}()

	var regions []calibration.Region
	if profile != nil {
		regions = profile.Regions()
	} else {
		for i := range f.texts {
			regions = append(regions, calibration.Free(geometry.RectInt{X: 0, Y: i * 40, Width: 200, Height: 20}))
		}
	}

	var out []extract.Extraction
	for i, region := range regions {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if f.closed.Load() > 0 {
			d.violation.Store(true)
		}
		var texts []string
		if i < len(f.texts) {
			texts = f.texts[i]
		}
		out = append(out, extract.Extraction{Region: region, Texts: texts})
		progress(float64(i+1) / float64(len(regions)))

		if f.blockAfter > 0 && i+1 == f.blockAfter {
			close(f.reached)
			<-ctx.Done()
		}
	}
	return out, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	path    string
	results []MatchResult
}

func (r *fakeRenderer) Render(img Image, results []MatchResult, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = path
	r.results = results
	return nil
}

type failingCatalog struct{}

func (failingCatalog) List(context.Context, string, catalog.Predicate) ([]catalog.Card, error) {
	return nil, catalog.ErrUnavailable
}

type fixture struct {
	t        *testing.T
	dir      string
	decoder  *fakeDecoder
	detector *fakeDetector
	renderer *fakeRenderer
	catalog  *catalog.Memory
	reader   *Reader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		dir:      t.TempDir(),
		decoder:  &fakeDecoder{images: make(map[string]*fakeImage)},
		detector: &fakeDetector{},
		renderer: &fakeRenderer{},
		catalog: catalog.NewMemory(
			catalog.Card{Name: "Lightning Bolt", Set: "m11"},
			catalog.Card{Name: "Llanowar Elves", Set: "m11"},
			catalog.Card{Name: "Lightning Bolt", Set: "woe"},
		),
	}
	f.reader = New(f.decoder, f.detector, f.renderer, match.New(f.catalog))
	t.Cleanup(func() { f.reader.Close() })
	return f
}

// screenshot registers a scripted image under a real file path.
func (f *fixture) screenshot(img *fakeImage) string {
	f.t.Helper()
	path := filepath.Join(f.dir, img.name+".png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		f.t.Fatal(err)
	}
	if img.blockAfter > 0 {
		img.reached = make(chan struct{})
	}
	f.decoder.images[path] = img
	return path
}

func uhd(name string, texts [][]string) *fakeImage {
	return &fakeImage{name: name, w: 3840, h: 2160, texts: texts}
}

func (f *fixture) reload(set, path string) {
	f.t.Helper()
	if err := f.reader.Reload(set, path); err != nil {
		f.t.Fatalf("Reload(%s) error = %v", path, err)
	}
	if err := f.reader.Wait(); err != nil {
		f.t.Fatalf("Wait() error = %v", err)
	}
}

func TestReloadCalibratedScenarios(t *testing.T) {
	f := newFixture(t)

	texts := make([][]string, 15)
	texts[0] = []string{"Lightning Bolt", ""}
	texts[1] = []string{"Bo"}
	texts[2] = []string{"Xyz Unknown Name"}
	texts[3] = []string{"Xyz", "Llanowar Elves"}
	path := f.screenshot(uhd("pack1", texts))

	f.reload("m11", path)

	sess := f.reader.Session()
	if sess == nil || !sess.Complete {
		t.Fatalf("Session() = %+v, want a complete session", sess)
	}
	if !sess.Calibrated() || sess.Profile.Key() != "3840x2160" {
		t.Fatalf("session profile = %v, want 3840x2160", sess.Profile)
	}
	if len(sess.Results) != 15 {
		t.Fatalf("len(Results) = %d, want 15", len(sess.Results))
	}

	// Region order is row-major.
	for i, m := range sess.Results {
		if m.Region.Row != i/5 || m.Region.Column != i%5 {
			t.Errorf("result %d at (%d,%d)", i, m.Region.Row, m.Region.Column)
		}
	}

	// A: exact row matched.
	if c := sess.Results[0].Card; c == nil || c.Name != "Lightning Bolt" || c.Set != "m11" {
		t.Errorf("region 0 card = %+v, want m11 Lightning Bolt", c)
	}
	// B: too short.
	if sess.Results[1].Card != nil {
		t.Errorf("region 1 card = %+v, want none", sess.Results[1].Card)
	}
	// C: no catalog row.
	if sess.Results[2].Card != nil {
		t.Errorf("region 2 card = %+v, want none", sess.Results[2].Card)
	}
	// Second candidate text used when the first misses.
	if c := sess.Results[3].Card; c == nil || c.Name != "Llanowar Elves" {
		t.Errorf("region 3 card = %+v, want Llanowar Elves", c)
	}

	ids := f.reader.MatchedCardIDs()
	if len(ids) != 2 || ids[0] != sess.Results[0].Card.ID || ids[1] != sess.Results[3].Card.ID {
		t.Errorf("MatchedCardIDs() = %v", ids)
	}

	out := filepath.Join(f.dir, "annotated.png")
	if err := f.reader.RenderAnnotatedImage(out); err != nil {
		t.Fatal(err)
	}
	if f.renderer.path != out || len(f.renderer.results) != 15 {
		t.Fatalf("renderer got %s with %d results", f.renderer.path, len(f.renderer.results))
	}
	// C: unmatched region still rendered.
	if r := f.renderer.results[2]; r.Matched() || r.Texts[0] != "Xyz Unknown Name" {
		t.Errorf("rendered region 2 = %+v", r)
	}
}

func TestReloadGenericPath(t *testing.T) {
	f := newFixture(t)
	path := f.screenshot(&fakeImage{name: "small", w: 1920, h: 1080, texts: [][]string{{"Lightning Bolt"}, {}}})

	f.reload("woe", path)

	sess := f.reader.Session()
	if sess.Calibrated() {
		t.Error("1920x1080 session should not be calibrated")
	}
	if len(sess.Results) != 2 || sess.Results[0].Region.Gridded() {
		t.Fatalf("Results = %+v", sess.Results)
	}
	if c := sess.Results[0].Card; c == nil || c.Set != "woe" {
		t.Errorf("card = %+v, want woe Lightning Bolt", c)
	}
}

func TestReloadMissingSourceKeepsSession(t *testing.T) {
	f := newFixture(t)
	path := f.screenshot(uhd("pack1", [][]string{{"Lightning Bolt"}}))
	f.reload("m11", path)
	before := f.reader.Session()

	err := f.reader.Reload("m11", filepath.Join(f.dir, "missing.png"))
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("Reload() error = %v, want ErrSourceMissing", err)
	}
	if f.reader.Session() != before {
		t.Error("session replaced after a failed reload")
	}
	if f.reader.Running() {
		t.Error("a failed reload started a task")
	}

	if err := f.reader.Reload("m11", f.dir); !errors.Is(err, ErrSourceMissing) {
		t.Errorf("Reload(dir) error = %v, want ErrSourceMissing", err)
	}
}

func TestReloadDecodeFailure(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "garbage.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.reader.Reload("m11", path); !errors.Is(err, ErrDecode) {
		t.Fatalf("Reload() error = %v, want ErrDecode", err)
	}
	if f.reader.Session() != nil {
		t.Error("decode failure produced a session")
	}
}

func TestCancelKeepsPreviousSession(t *testing.T) {
	f := newFixture(t)
	first := f.screenshot(uhd("pack1", [][]string{{"Lightning Bolt"}}))
	f.reload("m11", first)
	before := f.reader.Session()

	slow := uhd("pack2", [][]string{{"Llanowar Elves"}})
	slow.blockAfter = 2
	path := f.screenshot(slow)

	if err := f.reader.Reload("m11", path); err != nil {
		t.Fatal(err)
	}
	<-slow.reached
	f.reader.Cancel()

	if f.reader.Running() {
		t.Error("reader still running after Cancel")
	}
	if f.reader.Session() != before {
		t.Error("cancelled run replaced the visible session")
	}
	if slow.closed.Load() != 1 {
		t.Errorf("cancelled image closed %d times, want 1", slow.closed.Load())
	}
	if err := f.reader.Wait(); !errors.Is(err, extract.ErrCancelled) {
		t.Errorf("Wait() after Cancel = %v, want ErrCancelled", err)
	}

	// The next reload starts cleanly.
	again := f.screenshot(uhd("pack3", [][]string{{"Llanowar Elves"}}))
	f.reload("m11", again)
	if c := f.reader.Session().Results[0].Card; c == nil || c.Name != "Llanowar Elves" {
		t.Errorf("card after recovery = %+v", c)
	}
}

func TestWaitReportsCancellation(t *testing.T) {
	f := newFixture(t)
	slow := uhd("pack1", nil)
	slow.blockAfter = 2
	path := f.screenshot(slow)

	if err := f.reader.Reload("m11", path); err != nil {
		t.Fatal(err)
	}
	<-slow.reached

	errc := make(chan error, 1)
	go func() { errc <- f.reader.Wait() }()

	// Give Wait a chance to pick up the pending run.
	time.Sleep(10 * time.Millisecond)
	f.reader.Cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, extract.ErrCancelled) {
			t.Errorf("Wait() = %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait() never returned")
	}
}

func TestReloadSupersedesRunningTask(t *testing.T) {
	f := newFixture(t)

	slow := uhd("slow", [][]string{{"Lightning Bolt"}})
	slow.blockAfter = 2
	slowPath := f.screenshot(slow)
	fastPath := f.screenshot(uhd("fast", [][]string{{"Llanowar Elves"}}))

	finished := make(chan *Session, 4)
	f.reader.On(EventFinished, func(data interface{}) {
		finished <- data.(*Session)
	})

	if err := f.reader.Reload("m11", slowPath); err != nil {
		t.Fatal(err)
	}
	<-slow.reached

	f.reload("m11", fastPath)

	events := f.detector.Events()
	want := []string{"start slow", "end slow", "start fast", "end fast"}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("detector events = %v, want %v", events, want)
	}
	if f.detector.maxActive.Load() != 1 {
		t.Errorf("max concurrent detections = %d, want 1", f.detector.maxActive.Load())
	}
	if f.detector.violation.Load() {
		t.Error("detector read an image after it was released")
	}
	if slow.closed.Load() != 1 {
		t.Errorf("superseded image closed %d times, want 1", slow.closed.Load())
	}

	select {
	case sess := <-finished:
		if filepath.Base(sess.SourcePath) != "fast.png" {
			t.Errorf("finished session = %s, want fast.png", sess.SourcePath)
		}
	default:
		t.Fatal("no finished event")
	}
	if len(finished) != 0 {
		t.Error("superseded run reported completion")
	}
}

func TestReplacedSessionReleasesImage(t *testing.T) {
	f := newFixture(t)
	first := uhd("one", nil)
	f.reload("m11", f.screenshot(first))
	f.reload("m11", f.screenshot(uhd("two", nil)))

	if first.closed.Load() != 1 {
		t.Errorf("replaced session image closed %d times, want 1", first.closed.Load())
	}
}

func TestCatalogFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.reader = New(f.decoder, f.detector, f.renderer, match.New(failingCatalog{}))
	defer f.reader.Close()

	var failed atomic.Int32
	f.reader.On(EventFailed, func(interface{}) { failed.Add(1) })

	img := uhd("pack1", [][]string{{"Lightning Bolt"}})
	if err := f.reader.Reload("m11", f.screenshot(img)); err != nil {
		t.Fatal(err)
	}
	if err := f.reader.Wait(); !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("Wait() = %v, want ErrUnavailable", err)
	}
	if failed.Load() != 1 {
		t.Errorf("EventFailed fired %d times, want 1", failed.Load())
	}
	if f.reader.Session() != nil {
		t.Error("failed run became visible")
	}
	if img.closed.Load() != 1 {
		t.Error("failed run image not released")
	}
}

func TestProgressEvents(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var progress []float64
	f.reader.On(EventProgress, func(data interface{}) {
		mu.Lock()
		progress = append(progress, data.(float64))
		mu.Unlock()
	})

	f.reload("m11", f.screenshot(uhd("pack1", nil)))

	mu.Lock()
	defer mu.Unlock()
	if len(progress) < 2 || progress[0] != 0 || progress[len(progress)-1] != 1 {
		t.Fatalf("progress = %v, want 0 ... 1", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress went backwards: %v", progress)
		}
	}
}

func TestRenderWithoutSession(t *testing.T) {
	f := newFixture(t)
	if err := f.reader.RenderAnnotatedImage(filepath.Join(f.dir, "out.png")); !errors.Is(err, ErrNoSession) {
		t.Errorf("RenderAnnotatedImage() = %v, want ErrNoSession", err)
	}
	if ids := f.reader.MatchedCardIDs(); ids != nil {
		t.Errorf("MatchedCardIDs() = %v, want nil", ids)
	}
}

func TestWaitAfterRunFinished(t *testing.T) {
	f := newFixture(t)
	f.reader = New(f.decoder, f.detector, f.renderer, match.New(failingCatalog{}))
	defer f.reader.Close()

	failed := make(chan struct{}, 1)
	f.reader.On(EventFailed, func(interface{}) { failed <- struct{}{} })

	if err := f.reader.Reload("m11", f.screenshot(uhd("pack1", [][]string{{"Lightning Bolt"}}))); err != nil {
		t.Fatal(err)
	}
	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("run never failed")
	}
	if f.reader.Running() {
		t.Fatal("failed run still pending")
	}

	if err := f.reader.Wait(); !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("Wait() after the run finished = %v, want ErrUnavailable", err)
	}
	if f.reader.Session() != nil {
		t.Error("failed run became visible")
	}
}

func TestWaitBeforeAnyRun(t *testing.T) {
	f := newFixture(t)
	if err := f.reader.Wait(); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestWaitAfterSuccessfulRun(t *testing.T) {
	f := newFixture(t)
	f.reload("m11", f.screenshot(uhd("pack1", nil)))
	if err := f.reader.Wait(); err != nil {
		t.Errorf("second Wait() = %v, want nil", err)
	}
}
