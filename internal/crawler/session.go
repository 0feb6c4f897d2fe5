package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parsamap/raahgir/internal/geo"
	"github.com/parsamap/raahgir/internal/raah"
	"github.com/parsamap/raahgir/internal/storage"
	"github.com/parsamap/raahgir/pkg/ratelimit"
)

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSearching Phase = "searching"
	PhaseCrawling  Phase = "crawling"
	PhaseEnriching Phase = "enriching"
	PhaseDone      Phase = "done"
	PhaseError     Phase = "error"
	PhaseCancelled Phase = "cancelled"
)

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID              string
	Phase           Phase
	Category        string
	PointsCompleted int
	PointsTotal     int
	Places          int
	Enriched        int
	CooldownLeft    int // seconds remaining of an active 429 pause
	Err             string
}

// ManagerConfig configures session creation.
type ManagerConfig struct {
	Client ClientFactory
	Store  storage.Backend // optional
	Logger *slog.Logger
}

// ClientFactory builds the raah client for one session, with the
// session's 429 backoff wired in. Tests substitute a factory that
// points at a local server.
type ClientFactory func(backoff raah.BackoffFunc) (*raah.Client, error)

// DefaultClientFactory builds clients from a shared base config.
func DefaultClientFactory(base raah.Config) ClientFactory {
	return func(backoff raah.BackoffFunc) (*raah.Client, error) {
		cfg := base
		cfg.Backoff = backoff
		return raah.New(cfg)
	}
}

// Manager owns the single active session. Starting a new session
// cancels the previous one; late results from a cancelled run never
// touch the new session because each session carries its own state.
type Manager struct {
	cfg ManagerConfig

	mu      sync.Mutex
	current *Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg}
}

// Start creates a fresh session for a category, cancelling any session
// already running.
func (m *Manager) Start(category string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Cancel()
	}

	s, err := newSession(m.cfg, category)
	if err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

// Current returns the active session, nil when none was started.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Cancel stops the active session if any.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Cancel()
	}
}

// Session is one collection run: a strategy execution plus the records
// it produced. All shared state is behind the session mutex; the run
// itself is sequential.
type Session struct {
	id        string
	category  string
	ctx       context.Context
	cancel    context.CancelFunc
	client    *raah.Client
	enricher  *Enricher
	countdown *ratelimit.Countdown
	store     storage.Backend
	log       *slog.Logger

	mu     sync.Mutex
	status Status
	places []*Place
	index  map[string]int // token -> places index
}

func newSession(cfg ManagerConfig, category string) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       uuid.NewString(),
		category: category,
		ctx:      ctx,
		cancel:   cancel,
		store:    cfg.Store,
		index:    make(map[string]int),
	}
	s.log = cfg.Logger.With("session", s.id[:8])
	s.status = Status{ID: s.id, Phase: PhaseIdle, Category: category}

	s.countdown = ratelimit.NewCountdown(func(secondsLeft int) {
		s.mu.Lock()
		s.status.CooldownLeft = secondsLeft
		s.mu.Unlock()
	})

	client, err := cfg.Client(func(ctx context.Context, d time.Duration) error {
		return s.countdown.Wait(ctx, d)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("crawler: creating session client: %w", err)
	}
	s.client = client
	s.enricher = NewEnricher(client, s.log, &s.mu)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Cancel aborts the run. Idempotent.
func (s *Session) Cancel() {
	s.cancel()
	s.countdown.Clear()
	s.mu.Lock()
	if s.status.Phase != PhaseDone && s.status.Phase != PhaseError {
		s.status.Phase = PhaseCancelled
	}
	s.mu.Unlock()
}

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Places returns a snapshot of the collected records in stable order.
func (s *Session) Places() []Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Place, len(s.places))
	for i, p := range s.places {
		out[i] = *p
	}
	return out
}

// SearchPolygon generates search points inside the polygon and runs the
// multi-point search followed by enrichment. pointCount and
// minSpacingKm feed point generation.
func (s *Session) SearchPolygon(polygon geo.Ring, pointCount int, minSpacingKm float64) error {
	return s.searchPoints(polygon, geo.SamplePolygon(polygon, pointCount, minSpacingKm))
}

// SearchPerimeter places cameras along the polygon perimeter, plus an
// interior grid when internalSpacing > 0, and runs the same search.
// step and internalSpacing are in degrees.
func (s *Session) SearchPerimeter(polygon geo.Ring, step, internalSpacing float64) error {
	return s.searchPoints(polygon, geo.PerimeterCameras(polygon, step, internalSpacing))
}

func (s *Session) searchPoints(polygon geo.Ring, points []geo.Point) error {
	if len(points) == 0 {
		return s.fail(fmt.Errorf("crawler: no search points could be generated"))
	}

	s.mu.Lock()
	s.status.Phase = PhaseSearching
	s.status.PointsTotal = len(points)
	s.mu.Unlock()
	s.log.Info("polygon search starting", "category", s.category, "points", len(points))

	searcher := NewPointSearcher(s.client, PointSearchConfig{Logger: s.log})
	res, err := searcher.Run(s.ctx, s.category, polygon, points,
		func(p PointProgress) {
			s.mu.Lock()
			s.status.PointsCompleted = p.Completed
			s.status.Places = p.Places
			s.mu.Unlock()
		},
		func(f raah.Feature, sourceIndex int) {
			s.addFeature(f, sourceIndex)
		},
	)
	if err != nil {
		return s.fail(err)
	}
	// Tokens from poi-tokens arrays have no feature of their own yet.
	for _, tok := range res.Tokens {
		s.addToken(tok, 0)
	}

	return s.enrichAll()
}

// CrawlCity walks the region-paginated listing for a city, enriching
// each page's tokens before moving to the next page.
func (s *Session) CrawlCity(citySlug string) error {
	s.mu.Lock()
	s.status.Phase = PhaseCrawling
	s.mu.Unlock()
	s.log.Info("paged crawl starting", "city", citySlug, "category", s.category)

	crawler := NewPagedCrawler(s.client, PagedConfig{Logger: s.log})
	res, err := crawler.Crawl(s.ctx, citySlug, s.category, func(page int, p *raah.PlacesPage) error {
		var fresh []*Place
		for _, tok := range p.Items {
			if pl := s.addToken(tok, page); pl != nil {
				fresh = append(fresh, pl)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		return s.enricher.Enrich(s.ctx, fresh, func(i int) { s.onEnriched(fresh[i]) })
	})
	if err != nil {
		return s.fail(err)
	}
	s.log.Info("paged crawl finished", "last_page", res.LastPage, "items", res.Items, "reason", res.Reason)

	s.mu.Lock()
	s.status.Phase = PhaseDone
	s.mu.Unlock()
	return nil
}

// RetryPlace re-runs enrichment for a single failed record.
func (s *Session) RetryPlace(token string) error {
	s.mu.Lock()
	i, ok := s.index[token]
	var p *Place
	if ok {
		p = s.places[i]
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("crawler: unknown token %q", token)
	}

	if err := s.enricher.Retry(s.ctx, p); err != nil {
		return err
	}
	s.persist(p)
	return nil
}

// enrichAll resolves every pending record sequentially.
func (s *Session) enrichAll() error {
	s.mu.Lock()
	s.status.Phase = PhaseEnriching
	pending := make([]*Place, len(s.places))
	copy(pending, s.places)
	s.mu.Unlock()

	err := s.enricher.Enrich(s.ctx, pending, func(i int) { s.onEnriched(pending[i]) })
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.status.Phase = PhaseDone
	s.mu.Unlock()
	s.log.Info("session finished", "places", len(pending))
	return nil
}

// addFeature records a feature discovered by a search point, seeding
// name and coordinates from the feature itself.
func (s *Session) addFeature(f raah.Feature, sourceIndex int) {
	tok := f.Properties.Token
	if tok == "" {
		return
	}
	p := s.addToken(tok, sourceIndex)
	if p == nil {
		return
	}
	s.mu.Lock()
	if f.Properties.Name != "" {
		p.Name = f.Properties.Name
	}
	if lon, lat, ok := pointCoords(&f.Geometry); ok {
		p.Lon, p.Lat = lon, lat
	}
	s.mu.Unlock()
}

// addToken appends a pending record for a token not seen before and
// returns it; nil when the token is already tracked.
func (s *Session) addToken(token string, sourceIndex int) *Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[token]; dup {
		return nil
	}
	p := NewPlacePending(token, len(s.places)+1, sourceIndex)
	s.index[token] = len(s.places)
	s.places = append(s.places, p)
	s.status.Places = len(s.places)
	return p
}

func (s *Session) onEnriched(p *Place) {
	s.mu.Lock()
	s.status.Enriched++
	s.mu.Unlock()
	s.persist(p)
}

func (s *Session) persist(p *Place) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	rec := p.Record(uuid.NewString(), s.id, time.Now().UTC())
	s.mu.Unlock()
	if err := s.store.Save(s.ctx, rec); err != nil && s.ctx.Err() == nil {
		s.log.Warn("saving record failed", "token", p.Token, "err", err)
	}
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.status.Phase = PhaseCancelled
	} else {
		s.status.Phase = PhaseError
		s.status.Err = err.Error()
	}
	s.mu.Unlock()
	return err
}
