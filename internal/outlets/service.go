package outlets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/outlet_survey/backend/internal/metrics"
	"github.com/outlet_survey/backend/internal/models"
)

var (
	ErrNotFound     = errors.New("outlet not found")
	ErrNotValidated = errors.New("outlet is not validated")
)

// FetchError reports that the backend could not supply the outlet records.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch outlets: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Backend is the hosted row store holding profiles, outlets and products.
type Backend interface {
	GetAgentProfile(ctx context.Context, userID string) (*models.AgentProfile, error)
	ListAssignedOutlets(ctx context.Context) ([]models.AssignedOutlet, error)
	ListCapturedOutlets(ctx context.Context) ([]models.CapturedOutlet, error)
	UpsertCapturedOutlet(ctx context.Context, rec models.CapturedOutlet) error
	DeleteCapturedOutlet(ctx context.Context, capturedID string) error
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
}

type ImageStore interface {
	Delete(ctx context.Context, path string) error
	PathFromURL(url string) (string, bool)
}

type Service struct {
	Store       *Store
	Backend     Backend
	Images      ImageStore
	Validator   *validator.Validate
	Logger      zerolog.Logger
	OutletsTTL  time.Duration
	ProductsTTL time.Duration

	now func() time.Time
}

func NewService(backend Backend, images ImageStore, logger zerolog.Logger) *Service {
	return &Service{
		Store:       NewStore(backend, logger),
		Backend:     backend,
		Images:      images,
		Validator:   NewValidator(),
		Logger:      logger,
		OutletsTTL:  DefaultOutletsTTL,
		ProductsTTL: DefaultProductsTTL,
		now:         time.Now,
	}
}

// Refresh loads assigned and captured records in parallel. Without force the
// fetch only happens when the cache is empty or older than OutletsTTL.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	if force {
		s.Store.ForceRefetch()
	}
	if !s.Store.ShouldRefetch(s.OutletsTTL) {
		return nil
	}

	var (
		assigned []models.AssignedOutlet
		captured []models.CapturedOutlet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assigned, err = s.Backend.ListAssignedOutlets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		captured, err = s.Backend.ListCapturedOutlets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.OutletFetches.WithLabelValues("error").Inc()
		return &FetchError{Err: err}
	}
	metrics.OutletFetches.WithLabelValues("ok").Inc()

	s.Store.SetAssigned(assigned)
	s.Store.SetCaptured(captured)
	s.Store.MarkFetched()
	s.Logger.Debug().
		Int("assigned", len(assigned)).
		Int("captured", len(captured)).
		Msg("outlets refreshed")
	return nil
}

type Listing struct {
	Outlets []models.Outlet `json:"outlets"`
	Counts  Counts          `json:"counts"`
	Options FilterOptions   `json:"options"`
	Filters Filters         `json:"filters"`
	Stale   bool            `json:"stale"`
}

// OutletsForAgent refreshes when due and returns the filtered view. When the
// refresh fails but records are cached, the cached view is returned as stale.
func (s *Service) OutletsForAgent(ctx context.Context, agentID string, f Filters, force bool) (Listing, error) {
	stale := false
	if err := s.Refresh(ctx, force); err != nil {
		if !s.Store.HasOutlets() {
			return Listing{}, err
		}
		s.Logger.Warn().Err(err).Str("agent_id", agentID).Msg("serving cached outlets")
		stale = true
	}

	s.Store.SetFilters(agentID, f)
	view := s.Store.MergeForAgent(agentID)
	filtered, counts := ApplyFilters(view.All, f)
	return Listing{
		Outlets: filtered,
		Counts:  counts,
		Options: Options(view.All),
		Filters: f,
		Stale:   stale,
	}, nil
}

func (s *Service) Outlet(ctx context.Context, id, agentID string) (models.Outlet, error) {
	if err := s.Refresh(ctx, false); err != nil && !s.Store.HasOutlets() {
		return models.Outlet{}, err
	}
	o := s.Store.GetByID(id, agentID)
	if o == nil {
		return models.Outlet{}, ErrNotFound
	}
	return *o, nil
}

// Validate creates or updates the captured record for outlet id on behalf of
// the signed-in user. Location, community and assembly always come from the
// assigned record.
func (s *Service) Validate(ctx context.Context, id string, sess models.AgentSession, req CaptureRequest) (models.Outlet, error) {
	agentID := sess.AgentID
	current, err := s.Outlet(ctx, id, agentID)
	if err != nil {
		return models.Outlet{}, err
	}

	req.Normalize()
	var existing *models.CaptureDetails
	if current.IsValidated {
		existing = current.CaptureDetails
	}
	if err := req.Check(s.Validator, existing, current.OutletType); err != nil {
		return models.Outlet{}, err
	}

	rec := s.buildCaptured(current, existing, sess, req)
	if err := s.Backend.UpsertCapturedOutlet(ctx, rec); err != nil {
		return models.Outlet{}, fmt.Errorf("save captured outlet: %w", err)
	}
	s.Store.PutCaptured(rec)

	s.Logger.Info().
		Str("agent_id", agentID).
		Str("user_id", sess.UserID).
		Str("captured_id", rec.CapturedID).
		Bool("revalidated", existing != nil).
		Msg("outlet validated")
	return models.FromCaptured(rec), nil
}

func (s *Service) buildCaptured(current models.Outlet, existing *models.CaptureDetails, sess models.AgentSession, req CaptureRequest) models.CapturedOutlet {
	agentID := sess.AgentID
	now := s.now().UTC()
	agreement, expiring, _ := req.Dates()
	front, side, telescopic := req.images(existing)
	names, images := req.products(existing)

	base := current.AssignedOutlet
	outletType := req.OutletType
	if outletType == "" {
		outletType = base.OutletType
	}

	rec := models.CapturedOutlet{
		AssignedOutlet: models.AssignedOutlet{
			AssignedOutletID: base.AssignedOutletID,
			AgentID:          agentID,
			OutletName:       req.OutletName,
			OutletType:       outletType,
			Community:        base.Community,
			Assembly:         base.Assembly,
			Address:          req.Address,
			Latitude:         base.Latitude,
			Longitude:        base.Longitude,
			ContactName:      req.ContactName,
			ContactPhone:     req.ContactPhone,
			BusinessPhone:    req.BusinessPhone,
		},
		CaptureDetails: models.CaptureDetails{
			CapturedID:           CapturedID(base.AssignedOutletID, agentID),
			AgentUserID:          sess.UserID,
			OutletFrontImage:     front,
			OutletSideImage:      side,
			TelescopicImage:      telescopic,
			ProductNames:         names,
			ProductImages:        images,
			Headerboard:          req.Headerboard,
			HeaderboardAgreement: req.HeaderboardAgreement,
			Painted:              req.Painted,
			PaintedAgreement:     req.PaintedAgreement,
			Telescopic:           req.Telescopic,
			TelescopicAgreement:  req.TelescopicAgreement,
			NumberOfStylists:     req.NumberOfStylists,
			AgreementDate:        agreement,
			ExpiringDate:         expiring,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
	}
	if outletType != models.OutletTypeSalon {
		rec.NumberOfStylists = 0
	}
	if existing != nil {
		rec.CapturedID = existing.CapturedID
		rec.CreatedAt = existing.CreatedAt
	}
	return rec
}

// Unvalidate deletes the captured record for id and then its stored images.
// Image deletion failures are logged and do not fail the call.
func (s *Service) Unvalidate(ctx context.Context, id, agentID string) (models.Outlet, error) {
	current, err := s.Outlet(ctx, id, agentID)
	if err != nil {
		return models.Outlet{}, err
	}
	if !current.IsValidated {
		return models.Outlet{}, ErrNotValidated
	}

	rec := models.CapturedOutlet{AssignedOutlet: current.AssignedOutlet, CaptureDetails: *current.CaptureDetails}
	if err := s.Backend.DeleteCapturedOutlet(ctx, rec.CapturedID); err != nil {
		return models.Outlet{}, fmt.Errorf("delete captured outlet: %w", err)
	}
	s.deleteImages(ctx, rec)
	s.Store.RemoveCaptured(rec.CapturedID)

	s.Logger.Info().
		Str("agent_id", agentID).
		Str("captured_id", rec.CapturedID).
		Msg("outlet unvalidated")

	if o := s.Store.GetByID(rec.AssignedOutletID, agentID); o != nil {
		return *o, nil
	}
	return models.FromAssigned(rec.AssignedOutlet), nil
}

func (s *Service) deleteImages(ctx context.Context, rec models.CapturedOutlet) {
	if s.Images == nil {
		return
	}
	for _, url := range rec.ImageURLs() {
		path, ok := s.Images.PathFromURL(url)
		if !ok {
			continue
		}
		if err := s.Images.Delete(ctx, path); err != nil {
			s.Logger.Warn().Err(err).Str("path", path).Msg("failed to delete image")
		}
	}
}

// Products returns the active catalog. force drops the cached copy first.
func (s *Service) Products(ctx context.Context, force bool) []models.Product {
	if force {
		s.Store.ForceRefetchProducts()
	}
	return s.Store.GetProductsCached(ctx, s.ProductsTTL)
}

// ResolveSession maps a signed-in user to an agent. Users without a profile
// act as their own agent, named by email.
func (s *Service) ResolveSession(ctx context.Context, userID, email string) (models.AgentSession, error) {
	sess := models.AgentSession{UserID: userID, AgentID: userID, AgentName: email, Email: email}
	profile, err := s.Backend.GetAgentProfile(ctx, userID)
	if err != nil {
		return models.AgentSession{}, fmt.Errorf("load agent profile: %w", err)
	}
	if profile != nil {
		if profile.AgentID != "" {
			sess.AgentID = profile.AgentID
		}
		if profile.Name != "" {
			sess.AgentName = profile.Name
		}
	}
	return sess, nil
}

func (s *Service) SignOut(agentID string) {
	s.Store.Reset()
	s.Store.ClearFilters(agentID)
}
