package outlets

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/outlet_survey/backend/internal/metrics"
	"github.com/outlet_survey/backend/internal/models"
)

const (
	DefaultOutletsTTL  = 60 * time.Second
	DefaultProductsTTL = 5 * time.Minute
)

type ProductSource interface {
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
}

// Store is the process-wide holder of assigned/captured records, fetch
// timestamps, the product catalog and per-agent filter state.
type Store struct {
	mu sync.RWMutex

	assigned           []models.AssignedOutlet
	captured           []models.CapturedOutlet
	lastOutletsFetchAt time.Time

	products            []models.Product
	lastProductsFetchAt time.Time
	productSource       ProductSource

	filters map[string]Filters

	logger zerolog.Logger
	now    func() time.Time
}

func NewStore(products ProductSource, logger zerolog.Logger) *Store {
	return &Store{
		productSource: products,
		filters:       map[string]Filters{},
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Store) SetAssigned(records []models.AssignedOutlet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned = records
}

func (s *Store) SetCaptured(records []models.CapturedOutlet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = records
}

func (s *Store) HasOutlets() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assigned) > 0 || len(s.captured) > 0
}

func (s *Store) MergeForAgent(agentID string) MergedView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Merge(s.assigned, s.captured, agentID)
}

// GetByID returns nil when id matches neither a captured nor an assigned record of the agent.
func (s *Store) GetByID(id, agentID string) *models.Outlet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := FindByID(s.assigned, s.captured, id, agentID)
	if !ok {
		return nil
	}
	return &o
}

func (s *Store) CapturedByAssignedID(assignedOutletID, agentID string) (models.CapturedOutlet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findCapturedForAssigned(s.captured, assignedOutletID, agentID)
}

// PutCaptured replaces the record with the same captured_id or appends it.
func (s *Store) PutCaptured(rec models.CapturedOutlet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CapturedOutlet, 0, len(s.captured)+1)
	for _, c := range s.captured {
		if c.CapturedID != rec.CapturedID {
			out = append(out, c)
		}
	}
	s.captured = append(out, rec)
}

// RemoveCaptured reports whether a record was removed.
func (s *Store) RemoveCaptured(capturedID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CapturedOutlet, 0, len(s.captured))
	for _, c := range s.captured {
		if c.CapturedID != capturedID {
			out = append(out, c)
		}
	}
	removed := len(out) < len(s.captured)
	s.captured = out
	return removed
}

// ShouldRefetch is true when nothing is assigned yet or the last fetch is older than ttl.
func (s *Store) ShouldRefetch(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.assigned) == 0 {
		return true
	}
	return s.now().Sub(s.lastOutletsFetchAt) > ttl
}

func (s *Store) MarkFetched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutletsFetchAt = s.now()
}

func (s *Store) ForceRefetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutletsFetchAt = time.Time{}
}

// GetProductsCached serves the catalog from memory unless it is empty or older
// than ttl. A failed fetch is logged and the current cache returned.
func (s *Store) GetProductsCached(ctx context.Context, ttl time.Duration) []models.Product {
	s.mu.RLock()
	expired := s.now().Sub(s.lastProductsFetchAt) > ttl
	fresh := len(s.products) > 0 && !expired
	cached := s.products
	s.mu.RUnlock()
	if fresh || s.productSource == nil {
		return copyProducts(cached)
	}

	items, err := s.productSource.ListActiveProducts(ctx)
	if err != nil {
		metrics.ProductFetches.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("failed to fetch products, using cache")
		return copyProducts(cached)
	}
	metrics.ProductFetches.WithLabelValues("ok").Inc()
	if items == nil {
		items = []models.Product{}
	}

	s.mu.Lock()
	s.products = items
	s.lastProductsFetchAt = s.now()
	s.mu.Unlock()
	return copyProducts(items)
}

func (s *Store) ForceRefetchProducts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProductsFetchAt = time.Time{}
}

func (s *Store) SetFilters(agentID string, f Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[agentID] = f
}

func (s *Store) Filters(agentID string) Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters[agentID]
}

func (s *Store) ClearFilters(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.filters, agentID)
}

// Reset drops both fetch timestamps and the product catalog, as on sign-out.
// Record sets are kept; the next read refetches them.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutletsFetchAt = time.Time{}
	s.products = nil
	s.lastProductsFetchAt = time.Time{}
}

func copyProducts(in []models.Product) []models.Product {
	out := make([]models.Product, len(in))
	copy(out, in)
	return out
}
