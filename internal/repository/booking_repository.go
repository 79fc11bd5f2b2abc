package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teebox/teebox-bookings/internal/domain"
)

type BookingRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, userID int64, status domain.BookingStatus, paymentID, paymentStatus *string, slotIDs []int64) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetDetail(ctx context.Context, id int64) (*domain.BookingDetail, error)
	SetConfirmed(ctx context.Context, id int64, paymentID, paymentStatus string) (bool, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id int64, status domain.BookingStatus) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (bool, error)
	SlotIDsTx(ctx context.Context, tx pgx.Tx, bookingID int64) ([]int64, error)
	AttachSlotsTx(ctx context.Context, tx pgx.Tx, bookingID int64, slotIDs []int64) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error)
	List(ctx context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.Booking, error)
	ListForUserInPeriod(ctx context.Context, userID int64, from, to time.Time) ([]domain.BookingDetail, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, user_id, manage_token, status, payment_id, payment_status, booking_time, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.ManageToken, &b.Status,
		&b.PaymentID, &b.PaymentStatus, &b.BookingTime,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) CreateTx(ctx context.Context, tx pgx.Tx, userID int64, status domain.BookingStatus, paymentID, paymentStatus *string, slotIDs []int64) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (user_id, manage_token, status, payment_id, payment_status, booking_time)
		VALUES ($1,$2,$3,$4,$5,now()) RETURNING ` + bookingCols

	token := uuid.NewString()
	b, err := scanBooking(tx.QueryRow(ctx, q, userID, token, status, paymentID, paymentStatus))
	if err != nil {
		return nil, err
	}

	if err := r.AttachSlotsTx(ctx, tx, b.ID, slotIDs); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookingRepository) AttachSlotsTx(ctx context.Context, tx pgx.Tx, bookingID int64, slotIDs []int64) error {
	const q = `INSERT INTO booking_slots (booking_id, slot_id)
		SELECT $1, unnest($2::bigint[])`
	_, err := tx.Exec(ctx, q, bookingID, slotIDs)
	return err
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanBooking(r.pool.QueryRow(ctx, q, id))
}

// GetDetail loads a booking with its slots in start-time order, the bay
// names, and the owning user.
func (r *bookingRepository) GetDetail(ctx context.Context, id int64) (*domain.BookingDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id))
	if err != nil || b == nil {
		return nil, err
	}
	detail := &domain.BookingDetail{Booking: *b}

	const slotQ = `SELECT s.id, s.bay_id, s.start_time, s.end_time, s.status, b.name
		FROM booking_slots bs
		JOIN slots s ON s.id = bs.slot_id
		JOIN bays b ON b.id = s.bay_id
		WHERE bs.booking_id=$1
		ORDER BY s.start_time`
	rows, err := r.pool.Query(ctx, slotQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.SlotWithBay
		if err := rows.Scan(&s.ID, &s.BayID, &s.StartTime, &s.EndTime, &s.Status, &s.BayName); err != nil {
			return nil, err
		}
		detail.Slots = append(detail.Slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const userQ = `SELECT id, email, name, phone, role, membership_tier, membership_status,
		current_period_start, current_period_end, stripe_customer_id, created_at, updated_at
		FROM users WHERE id=$1`
	var u domain.User
	err = r.pool.QueryRow(ctx, userQ, b.UserID).Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role,
		&u.MembershipTier, &u.MembershipStatus,
		&u.CurrentPeriodStart, &u.CurrentPeriodEnd, &u.StripeCustomerID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}
	if err == nil {
		detail.User = &u
	}
	return detail, nil
}

// SetConfirmed flips a booking to confirmed with its payment fields. The
// status guard makes repeated webhook deliveries a no-op.
func (r *bookingRepository) SetConfirmed(ctx context.Context, id int64, paymentID, paymentStatus string) (bool, error) {
	const q = `UPDATE bookings SET status=$2, payment_id=$3, payment_status=$4, updated_at=now()
		WHERE id=$1 AND status != $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, id, domain.BookingConfirmed, paymentID, paymentStatus)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, id int64, status domain.BookingStatus) (bool, error) {
	const q = `UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1`
	result, err := tx.Exec(ctx, q, id, status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// UpdateStatus is the unconditional admin overwrite. No slot side effects.
func (r *bookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (bool, error) {
	const q = `UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, id, status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) SlotIDsTx(ctx context.Context, tx pgx.Tx, bookingID int64) ([]int64, error) {
	const q = `SELECT slot_id FROM booking_slots WHERE booking_id=$1`
	rows, err := tx.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *bookingRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM booking_slots WHERE booking_id=$1`, id); err != nil {
		return false, err
	}
	result, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) List(ctx context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + bookingCols + ` FROM bookings`
	args := []any{}
	if status != nil {
		q += ` WHERE status=$1 ORDER BY booking_time DESC LIMIT $2 OFFSET $3`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY booking_time DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.ManageToken, &b.Status,
			&b.PaymentID, &b.PaymentStatus, &b.BookingTime,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListForUserInPeriod returns the user's pending and confirmed bookings
// whose booking_time falls inside [from, to), each with its slots. Feeds
// usage accounting.
func (r *bookingRepository) ListForUserInPeriod(ctx context.Context, userID int64, from, to time.Time) ([]domain.BookingDetail, error) {
	const q = `SELECT bk.id, bk.user_id, bk.manage_token, bk.status, bk.payment_id, bk.payment_status,
			bk.booking_time, bk.created_at, bk.updated_at,
			s.id, s.bay_id, s.start_time, s.end_time, s.status
		FROM bookings bk
		JOIN booking_slots bs ON bs.booking_id = bk.id
		JOIN slots s ON s.id = bs.slot_id
		WHERE bk.user_id=$1 AND bk.status = ANY($2)
			AND bk.booking_time >= $3 AND bk.booking_time < $4
		ORDER BY bk.id, s.start_time`

	statuses := []string{string(domain.BookingPending), string(domain.BookingConfirmed)}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, userID, statuses, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []domain.BookingDetail
	var current *domain.BookingDetail
	for rows.Next() {
		var b domain.Booking
		var s domain.SlotWithBay
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.ManageToken, &b.Status,
			&b.PaymentID, &b.PaymentStatus, &b.BookingTime,
			&b.CreatedAt, &b.UpdatedAt,
			&s.ID, &s.BayID, &s.StartTime, &s.EndTime, &s.Status,
		); err != nil {
			return nil, err
		}
		if current == nil || current.ID != b.ID {
			details = append(details, domain.BookingDetail{Booking: b})
			current = &details[len(details)-1]
		}
		current.Slots = append(current.Slots, s)
	}
	return details, rows.Err()
}
