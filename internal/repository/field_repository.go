package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/repository/base"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fieldColumns = `id, owner_id, name, description, price_per_hour, address, lat, lng, is_active, created_at`

type FieldRepository struct {
	*base.Repository
}

func NewFieldRepository(pool *pgxpool.Pool) *FieldRepository {
	return &FieldRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новое поле
func (r *FieldRepository) Create(ctx context.Context, field *model.Field) error {
	query := `
		INSERT INTO fields (id, owner_id, name, description, price_per_hour, address, lat, lng, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	if field.ID == uuid.Nil {
		field.ID = uuid.New()
	}

	err := r.Do(ctx, "create field", func(ctx context.Context) error {
		return r.Pool().QueryRow(
			ctx, query,
			field.ID,
			field.OwnerID,
			field.Name,
			field.Description,
			field.PricePerHour,
			field.Address,
			field.Lat,
			field.Lng,
			field.IsActive,
		).Scan(&field.CreatedAt)
	})

	if err != nil {
		if base.IsForeignKeyViolation(err) {
			return apperr.Validation("owner does not exist")
		}
		return fmt.Errorf("create field: %w", err)
	}

	return nil
}

// GetByID получает поле по ID вместе с изображениями
func (r *FieldRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE id = $1`

	var field *model.Field
	err := r.Do(ctx, "get field by id", func(ctx context.Context) error {
		f, err := scanField(r.Pool().QueryRow(ctx, query, id))
		field = f
		return err
	})

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get field by id: %w", err)
	}

	if err := r.attachImages(ctx, []*model.Field{field}); err != nil {
		return nil, err
	}

	return field, nil
}

// List получает поля по фильтру, новые первыми
func (r *FieldRepository) List(ctx context.Context, filter service.FieldFilter) ([]*model.Field, error) {
	query := `
		SELECT ` + fieldColumns + `
		FROM fields
		WHERE ($1 = FALSE OR is_active = TRUE)
		  AND ($2::uuid IS NULL OR owner_id = $2)
		ORDER BY created_at DESC
	`

	var fields []*model.Field
	err := r.Do(ctx, "list fields", func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, query, filter.ActiveOnly, filter.OwnerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		fields = fields[:0]
		for rows.Next() {
			field, err := scanField(rows)
			if err != nil {
				return fmt.Errorf("scan field: %w", err)
			}
			fields = append(fields, field)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}

	if err := r.attachImages(ctx, fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// IDsByOwner получает идентификаторы полей владельца
func (r *FieldRepository) IDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.Do(ctx, "list owner field ids", func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, `SELECT id FROM fields WHERE owner_id = $1`, ownerID)
		if err != nil {
			return err
		}

		ids, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("list owner field ids: %w", err)
	}

	return ids, nil
}

// Update обновляет изменяемые атрибуты поля
func (r *FieldRepository) Update(ctx context.Context, field *model.Field) error {
	query := `
		UPDATE fields
		SET name = $1, description = $2, price_per_hour = $3, address = $4, lat = $5, lng = $6, is_active = $7
		WHERE id = $8
	`

	var affected int64
	err := r.Do(ctx, "update field", func(ctx context.Context) error {
		tag, err := r.Pool().Exec(
			ctx, query,
			field.Name,
			field.Description,
			field.PricePerHour,
			field.Address,
			field.Lat,
			field.Lng,
			field.IsActive,
			field.ID,
		)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("update field: %w", err)
	}

	if affected == 0 {
		return apperr.NotFound("field not found")
	}

	return nil
}

// Delete удаляет поле; изображения удаляются каскадно
func (r *FieldRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.Do(ctx, "delete field", func(ctx context.Context) error {
		tag, err := r.Pool().Exec(ctx, `DELETE FROM fields WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		if base.IsForeignKeyViolation(err) {
			return apperr.Conflict("field has bookings and cannot be deleted")
		}
		return fmt.Errorf("delete field: %w", err)
	}

	if affected == 0 {
		return apperr.NotFound("field not found")
	}

	return nil
}

// AddImage сохраняет изображение поля
func (r *FieldRepository) AddImage(ctx context.Context, image *model.FieldImage) error {
	query := `
		INSERT INTO field_images (id, field_id, file_path, caption)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}

	err := r.Do(ctx, "add field image", func(ctx context.Context) error {
		return r.Pool().QueryRow(ctx, query, image.ID, image.FieldID, image.FilePath, image.Caption).Scan(&image.CreatedAt)
	})

	if err != nil {
		if base.IsForeignKeyViolation(err) {
			return apperr.NotFound("field not found")
		}
		return fmt.Errorf("add field image: %w", err)
	}

	return nil
}

// attachImages подгружает изображения одним запросом для всех полей
func (r *FieldRepository) attachImages(ctx context.Context, fields []*model.Field) error {
	if len(fields) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(fields))
	byID := make(map[uuid.UUID]*model.Field, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
		byID[f.ID] = f
		f.Images = nil
	}

	query := `
		SELECT id, field_id, file_path, caption, created_at
		FROM field_images
		WHERE field_id = ANY($1)
		ORDER BY created_at
	`

	err := r.Do(ctx, "list field images", func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, query, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for _, f := range fields {
			f.Images = nil
		}

		for rows.Next() {
			var img model.FieldImage
			if err := rows.Scan(&img.ID, &img.FieldID, &img.FilePath, &img.Caption, &img.CreatedAt); err != nil {
				return fmt.Errorf("scan field image: %w", err)
			}
			if f, ok := byID[img.FieldID]; ok {
				f.Images = append(f.Images, &img)
			}
		}
		return rows.Err()
	})

	if err != nil {
		return fmt.Errorf("list field images: %w", err)
	}

	return nil
}

func scanField(row pgx.Row) (*model.Field, error) {
	var f model.Field
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.Name,
		&f.Description,
		&f.PricePerHour,
		&f.Address,
		&f.Lat,
		&f.Lng,
		&f.IsActive,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
