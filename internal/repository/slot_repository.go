package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teebox/teebox-bookings/internal/domain"
)

type SlotRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
	ListForDate(ctx context.Context, dayStart, dayEnd time.Time, bayID *int64) ([]domain.SlotWithBay, error)
	BlockRange(ctx context.Context, from, to time.Time, bayID *int64) (int64, error)
	UnblockRange(ctx context.Context, from, to time.Time, bayID *int64) (int64, error)
	AvailableIDs(ctx context.Context, ids []int64) ([]int64, error)
	AvailableWindow(ctx context.Context, bayID int64, from, to time.Time) ([]domain.Slot, error)
	LockAvailableTx(ctx context.Context, tx pgx.Tx, ids []int64) ([]int64, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, ids []int64, status domain.SlotStatus) error
	BulkInsert(ctx context.Context, slots []domain.Slot) (int64, error)
	Create(ctx context.Context, slot *domain.Slot) (*domain.Slot, error)
	Update(ctx context.Context, slot *domain.Slot) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type slotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &slotRepository{pool: pool}
}

const slotCols = `id, bay_id, start_time, end_time, status`

func (r *slotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	const q = `SELECT ` + slotCols + ` FROM slots WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Slot
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.BayID, &s.StartTime, &s.EndTime, &s.Status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &s, err
}

func (r *slotRepository) ListForDate(ctx context.Context, dayStart, dayEnd time.Time, bayID *int64) ([]domain.SlotWithBay, error) {
	q := `SELECT s.id, s.bay_id, s.start_time, s.end_time, s.status, b.name
		FROM slots s JOIN bays b ON b.id = s.bay_id
		WHERE s.start_time >= $1 AND s.start_time < $2`
	args := []any{dayStart, dayEnd}
	if bayID != nil {
		q += ` AND s.bay_id = $3`
		args = append(args, *bayID)
	}
	q += ` ORDER BY s.start_time, s.bay_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.SlotWithBay
	for rows.Next() {
		var s domain.SlotWithBay
		if err := rows.Scan(&s.ID, &s.BayID, &s.StartTime, &s.EndTime, &s.Status, &s.BayName); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// BlockRange flips available slots in the range to maintenance. Booked and
// awaiting-payment slots are left alone so a maintenance window can never
// silently cancel a paid reservation.
func (r *slotRepository) BlockRange(ctx context.Context, from, to time.Time, bayID *int64) (int64, error) {
	return r.flipRange(ctx, from, to, bayID, domain.SlotAvailable, domain.SlotMaintenance)
}

func (r *slotRepository) UnblockRange(ctx context.Context, from, to time.Time, bayID *int64) (int64, error) {
	return r.flipRange(ctx, from, to, bayID, domain.SlotMaintenance, domain.SlotAvailable)
}

func (r *slotRepository) flipRange(ctx context.Context, from, to time.Time, bayID *int64, fromStatus, toStatus domain.SlotStatus) (int64, error) {
	q := `UPDATE slots SET status=$1 WHERE start_time >= $2 AND end_time <= $3 AND status=$4`
	args := []any{toStatus, from, to, fromStatus}
	if bayID != nil {
		q += ` AND bay_id = $5`
		args = append(args, *bayID)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// AvailableIDs returns the subset of ids that are currently available. This
// is the non-binding pre-check used when creating payment intents; the
// binding check is LockAvailableTx.
func (r *slotRepository) AvailableIDs(ctx context.Context, ids []int64) ([]int64, error) {
	const q = `SELECT id FROM slots WHERE id = ANY($1) AND status=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, ids, domain.SlotAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *slotRepository) AvailableWindow(ctx context.Context, bayID int64, from, to time.Time) ([]domain.Slot, error) {
	const q = `SELECT ` + slotCols + ` FROM slots
		WHERE bay_id=$1 AND status=$2 AND start_time >= $3 AND start_time < $4
		ORDER BY start_time`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, bayID, domain.SlotAvailable, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(&s.ID, &s.BayID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// LockAvailableTx takes row locks on the requested slots that are still
// available and returns their ids. A concurrent reservation holding the
// lock blocks this call until it commits, at which point those rows no
// longer match status=available and drop out of the result; the caller
// compares counts to detect the lost race.
func (r *slotRepository) LockAvailableTx(ctx context.Context, tx pgx.Tx, ids []int64) ([]int64, error) {
	const q = `SELECT id FROM slots WHERE id = ANY($1) AND status=$2 FOR UPDATE`
	rows, err := tx.Query(ctx, q, ids, domain.SlotAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *slotRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, ids []int64, status domain.SlotStatus) error {
	const q = `UPDATE slots SET status=$1 WHERE id = ANY($2)`
	_, err := tx.Exec(ctx, q, status, ids)
	return err
}

// BulkInsert seeds the inventory, skipping slots that already exist for the
// same bay and start time. Used by the horizon-filling generator.
func (r *slotRepository) BulkInsert(ctx context.Context, slots []domain.Slot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	const q = `INSERT INTO slots (bay_id, start_time, end_time, status)
		SELECT * FROM unnest($1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::text[])
		ON CONFLICT (bay_id, start_time) DO NOTHING`

	bayIDs := make([]int64, len(slots))
	starts := make([]time.Time, len(slots))
	ends := make([]time.Time, len(slots))
	statuses := make([]string, len(slots))
	for i, s := range slots {
		bayIDs[i] = s.BayID
		starts[i] = s.StartTime
		ends[i] = s.EndTime
		statuses[i] = string(s.Status)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, bayIDs, starts, ends, statuses)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *slotRepository) Create(ctx context.Context, slot *domain.Slot) (*domain.Slot, error) {
	const q = `INSERT INTO slots (bay_id, start_time, end_time, status)
		VALUES ($1,$2,$3,$4) RETURNING ` + slotCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Slot
	err := r.pool.QueryRow(ctx, q, slot.BayID, slot.StartTime, slot.EndTime, slot.Status).
		Scan(&s.ID, &s.BayID, &s.StartTime, &s.EndTime, &s.Status)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update is the administrative override: bay, times, and status are
// reassigned with no availability check.
func (r *slotRepository) Update(ctx context.Context, slot *domain.Slot) (bool, error) {
	const q = `UPDATE slots SET bay_id=$2, start_time=$3, end_time=$4, status=$5 WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, slot.ID, slot.BayID, slot.StartTime, slot.EndTime, slot.Status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *slotRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM slots WHERE id=$1 AND NOT EXISTS (
		SELECT 1 FROM booking_slots WHERE slot_id=$1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
