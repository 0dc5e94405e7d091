package generation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"eventcraft/internal/models"
	"eventcraft/internal/moderation"
	"eventcraft/internal/providers"
	"eventcraft/internal/storage"
	"eventcraft/internal/store"
)

// testPNG returns a solid 200x120 PNG.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// fakeGenerator answers with a fixed image unless fail says otherwise.
type fakeGenerator struct {
	mu    sync.Mutex
	data  []byte
	fail  func(req providers.Request) error
	calls []providers.Request
	pref  []string
}

func (f *fakeGenerator) Generate(_ context.Context, req providers.Request, preferred string) (*providers.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.pref = append(f.pref, preferred)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return &providers.Result{Attempts: []providers.Attempt{
				{Provider: "ideogram", Outcome: "failure", Error: err.Error()},
				{Provider: "fal-qwen", Outcome: "skipped", Error: "circuit open"},
			}}, err
		}
	}
	return &providers.Result{
		Image: &providers.Image{
			Data:        f.data,
			ContentType: "image/png",
			Provider:    "ideogram",
			Model:       "V_2",
			Seed:        req.Seed,
		},
		Attempts: []providers.Attempt{{Provider: "ideogram", Outcome: "success"}},
	}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	mu        sync.Mutex
	uploaded  map[string]string // key -> content type
	deleted   []string
	uploadErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploaded: make(map[string]string)}
}

func (f *fakeObjects) UploadImage(_ context.Context, key string, data []byte, contentType string, opts storage.ImageOptions) (*storage.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	stored := key + ".webp"
	f.mu.Lock()
	f.uploaded[stored] = contentType
	f.mu.Unlock()
	return &storage.UploadResult{
		Key:              stored,
		URL:              "https://cdn.test/" + stored,
		ContentType:      "image/webp",
		OriginalSize:     int64(len(data)),
		StoredSize:       int64(len(data) / 4),
		CompressionRatio: 0.25,
		Converted:        true,
	}, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.uploaded, key)
	return nil
}

// fakeStore is an in-memory Generations and Balances.
type fakeStore struct {
	mu              sync.Mutex
	balances        map[uuid.UUID]int
	generations     map[uuid.UUID]*models.Generation
	carousels       map[uuid.UUID]*models.Carousel
	failed          []*models.Generation
	failedCarousels []*models.Carousel
	completeErr     error
	lastFilter      store.ListFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances:    make(map[uuid.UUID]int),
		generations: make(map[uuid.UUID]*models.Generation),
		carousels:   make(map[uuid.UUID]*models.Carousel),
	}
}

func (f *fakeStore) Balance(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) debit(userID uuid.UUID, cost int) (int, error) {
	if f.completeErr != nil {
		return 0, f.completeErr
	}
	if f.balances[userID] < cost {
		return 0, store.ErrInsufficientCredits
	}
	f.balances[userID] -= cost
	return f.balances[userID], nil
}

func (f *fakeStore) Complete(_ context.Context, g *models.Generation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, err := f.debit(g.UserID, g.Cost)
	if err != nil {
		return 0, err
	}
	g.Status = models.StatusCompleted
	f.generations[g.ID] = g
	return balance, nil
}

func (f *fakeStore) RecordFailed(_ context.Context, g *models.Generation, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.Status = models.StatusFailed
	g.Cost = 0
	g.Error = &reason
	f.failed = append(f.failed, g)
	return nil
}

func (f *fakeStore) CompleteCarousel(_ context.Context, c *models.Carousel) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, err := f.debit(c.UserID, c.Cost)
	if err != nil {
		return 0, err
	}
	c.Status = models.StatusCompleted
	f.carousels[c.ID] = c
	for i := range c.Slides {
		idx, cid := i, c.ID
		c.Slides[i].SlideIndex = &idx
		c.Slides[i].CarouselID = &cid
		c.Slides[i].Kind = models.KindSlide
		f.generations[c.Slides[i].ID] = &c.Slides[i]
	}
	return balance, nil
}

func (f *fakeStore) RecordFailedCarousel(_ context.Context, c *models.Carousel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Status = models.StatusFailed
	c.Cost = 0
	f.failedCarousels = append(f.failedCarousels, c)
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generations[id], nil
}

func (f *fakeStore) FindCarousel(_ context.Context, id uuid.UUID) (*models.Carousel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carousels[id], nil
}

func (f *fakeStore) List(_ context.Context, filter store.ListFilter) ([]models.Generation, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []models.Generation
	for _, g := range f.generations {
		if filter.UserID == nil || *filter.UserID == g.UserID {
			out = append(out, *g)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.generations[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.generations, id)
	return nil
}

// fakeModerator flags prompts containing a word.
type fakeModerator struct {
	flag string
	err  error
}

func (m fakeModerator) CheckSafety(_ context.Context, text string) (*moderation.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.flag != "" && strings.Contains(strings.ToLower(text), m.flag) {
		return &moderation.Result{Safe: false, Categories: []string{"violence"}}, nil
	}
	return &moderation.Result{Safe: true}, nil
}

// fakeRecorder counts metric calls.
type fakeRecorder struct {
	mu         sync.Mutex
	outcomes   []string // kind/status
	spent      int
	rejections int
	uploads    int
}

func (r *fakeRecorder) RecordGeneration(kind, status string, cost int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, kind+"/"+status)
	r.spent += cost
}

func (r *fakeRecorder) RecordRejection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections++
}

func (r *fakeRecorder) RecordUpload(int64, int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads++
}

// harness bundles a Service with its fakes.
type harness struct {
	svc     *Service
	gen     *fakeGenerator
	objects *fakeObjects
	store   *fakeStore
	rec     *fakeRecorder
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		gen:     &fakeGenerator{data: testPNG(t)},
		objects: newFakeObjects(),
		store:   newFakeStore(),
		rec:     &fakeRecorder{},
	}
	h.svc = New(Deps{
		Generations: h.store,
		Balances:    h.store,
		Generator:   h.gen,
		Objects:     h.objects,
		Recorder:    h.rec,
	}, opts)
	return h
}

// user creates a user with the given plan and balance.
func (h *harness) user(plan models.Plan, credits int) *models.User {
	u := &models.User{ID: uuid.New(), Role: models.RoleUser, Plan: plan, Credits: credits}
	h.store.balances[u.ID] = credits
	return u
}

var errProviderDown = errors.New("ideogram: HTTP 503")
