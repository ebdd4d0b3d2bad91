package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/outlet_survey/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

// Connect opens the pool and retries the first ping with exponential backoff
// until maxWait has elapsed.
func Connect(ctx context.Context, databaseURL string, maxWait time.Duration, logger zerolog.Logger) (*Store, error) {
	store, err := New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxWait

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("database not ready")
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
	}
	return store, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetAgentProfile(ctx context.Context, userID string) (*models.AgentProfile, error) {
	var p models.AgentProfile
	err := s.Pool.QueryRow(ctx, `SELECT agent_id, COALESCE(name, '') FROM agent_profiles WHERE user_id = $1`, userID).
		Scan(&p.AgentID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

const assignedColumns = `assigned_outlet_id, agent_id, COALESCE(outlet_name, ''), COALESCE(outlet_type, ''),
	COALESCE(community, ''), COALESCE(assembly, ''), COALESCE(address, ''),
	COALESCE(latitude, 0), COALESCE(longitude, 0),
	COALESCE(contact_name, ''), COALESCE(contact_phone, ''), COALESCE(business_phone, '')`

func (s *Store) ListAssignedOutlets(ctx context.Context) ([]models.AssignedOutlet, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+assignedColumns+` FROM assigned_outlets ORDER BY assigned_outlet_id ASC, agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AssignedOutlet{}
	for rows.Next() {
		var a models.AssignedOutlet
		if err := rows.Scan(assignedDest(&a)...); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func assignedDest(a *models.AssignedOutlet) []any {
	return []any{
		&a.AssignedOutletID, &a.AgentID, &a.OutletName, &a.OutletType,
		&a.Community, &a.Assembly, &a.Address,
		&a.Latitude, &a.Longitude,
		&a.ContactName, &a.ContactPhone, &a.BusinessPhone,
	}
}

func (s *Store) InsertAssignedOutlets(ctx context.Context, outlets []models.AssignedOutlet) (int64, error) {
	rows := make([][]any, 0, len(outlets))
	for _, a := range outlets {
		rows = append(rows, []any{
			a.AssignedOutletID, a.AgentID, a.OutletName, a.OutletType,
			a.Community, a.Assembly, a.Address, a.Latitude, a.Longitude,
			a.ContactName, a.ContactPhone, a.BusinessPhone,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"assigned_outlets"}, []string{
		"assigned_outlet_id", "agent_id", "outlet_name", "outlet_type",
		"community", "assembly", "address", "latitude", "longitude",
		"contact_name", "contact_phone", "business_phone",
	}, pgx.CopyFromRows(rows))
}

const capturedColumns = assignedColumns + `,
	captured_id, COALESCE(agent_user_id, ''),
	outlet_front_image, outlet_side_image, telescopic_image,
	COALESCE(product_names, '{}'), COALESCE(product_images, '{}'),
	COALESCE(headerboard, false), COALESCE(headerboard_agreement, false),
	COALESCE(painted, false), COALESCE(painted_agreement, false),
	COALESCE(telescopic, false), COALESCE(telescopic_agreement, false),
	COALESCE(number_of_stylists, 0),
	partnership_agreement_date, partnership_expiring_date,
	created_at, updated_at`

func (s *Store) ListCapturedOutlets(ctx context.Context) ([]models.CapturedOutlet, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+capturedColumns+` FROM captured_outlets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CapturedOutlet{}
	for rows.Next() {
		var c models.CapturedOutlet
		dest := append(assignedDest(&c.AssignedOutlet),
			&c.CapturedID, &c.AgentUserID,
			&c.OutletFrontImage, &c.OutletSideImage, &c.TelescopicImage,
			&c.ProductNames, &c.ProductImages,
			&c.Headerboard, &c.HeaderboardAgreement,
			&c.Painted, &c.PaintedAgreement,
			&c.Telescopic, &c.TelescopicAgreement,
			&c.NumberOfStylists,
			&c.AgreementDate, &c.ExpiringDate,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCapturedOutlet(ctx context.Context, c models.CapturedOutlet) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO captured_outlets (
			captured_id, assigned_outlet_id, agent_id, agent_user_id,
			outlet_name, outlet_type, community, assembly, address, latitude, longitude,
			contact_name, contact_phone, business_phone,
			outlet_front_image, outlet_side_image, telescopic_image,
			product_names, product_images,
			headerboard, headerboard_agreement, painted, painted_agreement,
			telescopic, telescopic_agreement, number_of_stylists,
			partnership_agreement_date, partnership_expiring_date,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30
		)
		ON CONFLICT (captured_id) DO UPDATE SET
			outlet_name = EXCLUDED.outlet_name,
			outlet_type = EXCLUDED.outlet_type,
			address = EXCLUDED.address,
			contact_name = EXCLUDED.contact_name,
			contact_phone = EXCLUDED.contact_phone,
			business_phone = EXCLUDED.business_phone,
			outlet_front_image = EXCLUDED.outlet_front_image,
			outlet_side_image = EXCLUDED.outlet_side_image,
			telescopic_image = EXCLUDED.telescopic_image,
			product_names = EXCLUDED.product_names,
			product_images = EXCLUDED.product_images,
			headerboard = EXCLUDED.headerboard,
			headerboard_agreement = EXCLUDED.headerboard_agreement,
			painted = EXCLUDED.painted,
			painted_agreement = EXCLUDED.painted_agreement,
			telescopic = EXCLUDED.telescopic,
			telescopic_agreement = EXCLUDED.telescopic_agreement,
			number_of_stylists = EXCLUDED.number_of_stylists,
			partnership_agreement_date = EXCLUDED.partnership_agreement_date,
			partnership_expiring_date = EXCLUDED.partnership_expiring_date,
			updated_at = EXCLUDED.updated_at`,
		c.CapturedID, c.AssignedOutletID, c.AgentID, c.AgentUserID,
		c.OutletName, c.OutletType, c.Community, c.Assembly, c.Address, c.Latitude, c.Longitude,
		c.ContactName, c.ContactPhone, c.BusinessPhone,
		c.OutletFrontImage, c.OutletSideImage, c.TelescopicImage,
		nonNilNames(c.ProductNames), nonNilImages(c.ProductImages),
		c.Headerboard, c.HeaderboardAgreement, c.Painted, c.PaintedAgreement,
		c.Telescopic, c.TelescopicAgreement, c.NumberOfStylists,
		c.AgreementDate, c.ExpiringDate,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *Store) DeleteCapturedOutlet(ctx context.Context, capturedID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM captured_outlets WHERE captured_id = $1`, capturedID)
	return err
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name FROM products WHERE active ORDER BY sort_order ASC NULLS LAST, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nonNilNames(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilImages(in []*string) []*string {
	if in == nil {
		return []*string{}
	}
	return in
}
