package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Бронирование вместе с краткими данными поля и арендатора
const bookingSelect = `
	SELECT b.id, b.field_id, b.user_id, b.start_time, b.end_time, b.status, b.total_price,
	       b.proof_of_payment_url, b.created_at, b.updated_at,
	       f.name, f.address, u.name, u.email
	FROM bookings b
	JOIN fields f ON f.id = b.field_id
	JOIN users u ON u.id = b.user_id
`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// CreateIfAvailable создаёт бронирование, если интервал свободен.
// Под транзакционной advisory-блокировкой поля повторяем проверку пересечений;
// constraint bookings_no_overlap страхует от записи в обход сервиса.
func (r *BookingRepository) CreateIfAvailable(ctx context.Context, booking *model.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	var conflict bool
	err := r.Do(ctx, "create booking", func(ctx context.Context) error {
		conflict = false
		return r.InTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, booking.FieldID.String())
			if err != nil {
				return fmt.Errorf("lock field: %w", err)
			}

			var exists bool
			err = tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM bookings
					WHERE field_id = $1
					  AND status <> 'cancelled'
					  AND start_time < $3
					  AND end_time > $2
				)
			`, booking.FieldID, booking.StartTime, booking.EndTime).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}

			if exists {
				conflict = true
				return nil
			}

			return tx.QueryRow(ctx, `
				INSERT INTO bookings (id, field_id, user_id, start_time, end_time, status, total_price, proof_of_payment_url)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING created_at, updated_at
			`,
				booking.ID,
				booking.FieldID,
				booking.UserID,
				booking.StartTime,
				booking.EndTime,
				booking.Status,
				booking.TotalPrice,
				booking.ProofOfPaymentURL,
			).Scan(&booking.CreatedAt, &booking.UpdatedAt)
		})
	})

	if conflict || base.IsExclusionViolation(err) {
		return apperr.Conflict("time slot already booked")
	}

	if err != nil {
		if base.IsForeignKeyViolation(err) {
			return apperr.Validation("field or user does not exist")
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// ListOccupying получает неотменённые бронирования поля, пересекающие [start, end)
func (r *BookingRepository) ListOccupying(ctx context.Context, fieldID uuid.UUID, start, end time.Time) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE b.field_id = $1
		  AND b.status <> 'cancelled'
		  AND b.start_time < $3
		  AND b.end_time > $2
		ORDER BY b.start_time
	`
	return r.list(ctx, "list occupying bookings", query, fieldID, start, end)
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := bookingSelect + `WHERE b.id = $1`

	var booking *model.Booking
	err := r.Do(ctx, "get booking by id", func(ctx context.Context) error {
		b, err := scanBooking(r.Pool().QueryRow(ctx, query, id))
		booking = b
		return err
	})

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// ListByUser получает все бронирования арендатора
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`
	return r.list(ctx, "list bookings by user", query, userID)
}

// ListByFields получает бронирования по набору полей
func (r *BookingRepository) ListByFields(ctx context.Context, fieldIDs []uuid.UUID) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE b.field_id = ANY($1)
		ORDER BY b.created_at DESC
	`
	return r.list(ctx, "list bookings by fields", query, fieldIDs)
}

// ListAll получает все бронирования
func (r *BookingRepository) ListAll(ctx context.Context) ([]*model.Booking, error) {
	query := bookingSelect + `ORDER BY b.created_at DESC`
	return r.list(ctx, "list all bookings", query)
}

// TransitionStatus обновляет статус, только если текущий равен from
func (r *BookingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`

	var affected int64
	err := r.Do(ctx, "update booking status", func(ctx context.Context) error {
		tag, err := r.Pool().Exec(ctx, query, to, id, from)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	if affected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// SetPaymentProof сохраняет путь к чеку у ожидающего бронирования
func (r *BookingRepository) SetPaymentProof(ctx context.Context, id uuid.UUID, path string) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET proof_of_payment_url = $1, updated_at = now()
		WHERE id = $2 AND status = 'pending'
	`

	var affected int64
	err := r.Do(ctx, "set payment proof", func(ctx context.Context) error {
		tag, err := r.Pool().Exec(ctx, query, path, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("set payment proof: %w", err)
	}

	if affected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// CompleteEnded переводит завершившиеся подтверждённые бронирования в completed
func (r *BookingRepository) CompleteEnded(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', updated_at = now()
		WHERE status = 'confirmed' AND end_time <= $1
	`

	var affected int64
	err := r.Do(ctx, "complete ended bookings", func(ctx context.Context) error {
		tag, err := r.Pool().Exec(ctx, query, now)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return 0, fmt.Errorf("complete ended bookings: %w", err)
	}

	return affected, nil
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	var bookings []*model.Booking
	err := r.Do(ctx, op, func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		bookings = bookings[:0]
		for rows.Next() {
			booking, err := scanBooking(rows)
			if err != nil {
				return fmt.Errorf("scan booking: %w", err)
			}
			bookings = append(bookings, booking)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		field  model.FieldSummary
		renter model.UserSummary
	)
	err := row.Scan(
		&b.ID,
		&b.FieldID,
		&b.UserID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.TotalPrice,
		&b.ProofOfPaymentURL,
		&b.CreatedAt,
		&b.UpdatedAt,
		&field.Name,
		&field.Address,
		&renter.Name,
		&renter.Email,
	)
	if err != nil {
		return nil, err
	}

	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.Field = &field
	b.Renter = &renter
	return &b, nil
}
