package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teebox/teebox-bookings/internal/domain"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*domain.User, error)
	UpsertGuest(ctx context.Context, info domain.GuestInfo) (*domain.User, error)
	UpdateMembership(ctx context.Context, customerID string, tier *domain.MembershipTier, status domain.MembershipStatus, periodStart, periodEnd *time.Time) (bool, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, email, name, phone, role, password_hash, membership_tier, membership_status,
	current_period_start, current_period_end, stripe_customer_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.PasswordHash,
		&u.MembershipTier, &u.MembershipStatus,
		&u.CurrentPeriodStart, &u.CurrentPeriodEnd, &u.StripeCustomerID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepository) FindByStripeCustomer(ctx context.Context, customerID string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE stripe_customer_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, customerID))
}

// UpsertGuest resolves checkout contact info to a user row, keyed by email.
// A returning email updates name and phone in place; a new one creates a
// guest-role user. Calling twice with the same email yields the same row.
func (r *userRepository) UpsertGuest(ctx context.Context, info domain.GuestInfo) (*domain.User, error) {
	const q = `INSERT INTO users (email, name, phone, role, password_hash)
		VALUES (lower($1), $2, $3, $4, '')
		ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, phone=EXCLUDED.phone, updated_at=now()
		RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, info.Email, info.Name, info.Phone, domain.RoleGuest))
}

// UpdateMembership writes subscription state keyed by the provider's
// customer id. Nil period bounds clear the stored bounds.
func (r *userRepository) UpdateMembership(ctx context.Context, customerID string, tier *domain.MembershipTier, status domain.MembershipStatus, periodStart, periodEnd *time.Time) (bool, error) {
	const q = `UPDATE users SET membership_tier=$2, membership_status=$3,
		current_period_start=$4, current_period_end=$5, updated_at=now()
		WHERE stripe_customer_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, customerID, tier, status, periodStart, periodEnd)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
