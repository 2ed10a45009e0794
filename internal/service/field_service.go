package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FieldInput данные для создания поля
type FieldInput struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Description  string   `json:"description" validate:"required,max=5000"`
	PricePerHour int64    `json:"price_per_hour" validate:"gte=0,lte=1000000000000"`
	Address      string   `json:"address" validate:"required,max=500"`
	Lat          *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng          *float64 `json:"lng" validate:"omitempty,longitude"`
	IsActive     *bool    `json:"is_active"`
}

// FieldPatch частичное обновление; nil - оставить как есть
type FieldPatch struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description  *string  `json:"description" validate:"omitempty,min=1,max=5000"`
	PricePerHour *int64   `json:"price_per_hour" validate:"omitempty,gte=0,lte=1000000000000"`
	Address      *string  `json:"address" validate:"omitempty,min=1,max=500"`
	Lat          *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng          *float64 `json:"lng" validate:"omitempty,longitude"`
	IsActive     *bool    `json:"is_active"`
}

type FieldService struct {
	users    UserStore
	fields   FieldStore
	cache    CatalogCache
	validate *validator.Validate
	logger   *zap.Logger
}

func NewFieldService(users UserStore, fields FieldStore, cache CatalogCache, logger *zap.Logger) *FieldService {
	if cache == nil {
		cache = nopCache{}
	}
	return &FieldService{
		users:    users,
		fields:   fields,
		cache:    cache,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ListActive возвращает активные поля, новые первыми
func (s *FieldService) ListActive(ctx context.Context) ([]*model.Field, error) {
	if fields, ok := s.cache.GetActiveFields(ctx); ok {
		return fields, nil
	}

	fields, err := s.fields.List(ctx, FieldFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list active fields: %w", err)
	}

	if fields == nil {
		fields = []*model.Field{}
	}

	s.cache.SetActiveFields(ctx, fields)

	return fields, nil
}

// ListManaged все поля, которыми управляет вызывающий, включая неактивные
func (s *FieldService) ListManaged(ctx context.Context, callerID uuid.UUID) ([]*model.Field, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	if !caller.CanOwnFields() {
		return nil, apperr.Forbidden("owner or admin role required")
	}

	filter := FieldFilter{}
	if !caller.IsAdmin() {
		filter.OwnerID = &caller.ID
	}

	fields, err := s.fields.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list managed fields: %w", err)
	}

	if fields == nil {
		fields = []*model.Field{}
	}

	return fields, nil
}

// Get получает поле по ID
func (s *FieldService) Get(ctx context.Context, id uuid.UUID) (*model.Field, error) {
	field, err := s.fields.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}

	if field == nil {
		return nil, apperr.NotFound("field not found")
	}

	return field, nil
}

// Create создаёт поле, владельцем становится вызывающий
func (s *FieldService) Create(ctx context.Context, callerID uuid.UUID, in FieldInput) (*model.Field, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	if !caller.CanOwnFields() {
		return nil, apperr.Forbidden("owner or admin role required")
	}

	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	field := &model.Field{
		OwnerID:      caller.ID,
		Name:         in.Name,
		Description:  in.Description,
		PricePerHour: in.PricePerHour,
		Address:      in.Address,
		Lat:          in.Lat,
		Lng:          in.Lng,
		IsActive:     true,
	}
	if in.IsActive != nil {
		field.IsActive = *in.IsActive
	}

	err = s.fields.Create(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}

	s.cache.Invalidate(ctx)

	s.logger.Info("Field created",
		zap.String("field_id", field.ID.String()),
		zap.String("owner_id", caller.ID.String()),
		zap.String("name", field.Name),
	)

	return field, nil
}

// Update применяет частичное обновление к полю
func (s *FieldService) Update(ctx context.Context, callerID, fieldID uuid.UUID, patch FieldPatch) (*model.Field, error) {
	field, err := s.managedField(ctx, callerID, fieldID)
	if err != nil {
		return nil, err
	}

	if err := s.validateStruct(patch); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		field.Name = *patch.Name
	}
	if patch.Description != nil {
		field.Description = *patch.Description
	}
	if patch.PricePerHour != nil {
		field.PricePerHour = *patch.PricePerHour
	}
	if patch.Address != nil {
		field.Address = *patch.Address
	}
	if patch.Lat != nil {
		field.Lat = patch.Lat
	}
	if patch.Lng != nil {
		field.Lng = patch.Lng
	}
	if patch.IsActive != nil {
		field.IsActive = *patch.IsActive
	}

	err = s.fields.Update(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("update field: %w", err)
	}

	s.cache.Invalidate(ctx)

	s.logger.Info("Field updated",
		zap.String("field_id", fieldID.String()),
		zap.String("caller_id", callerID.String()),
	)

	return field, nil
}

// Delete удаляет поле вместе с изображениями
func (s *FieldService) Delete(ctx context.Context, callerID, fieldID uuid.UUID) error {
	_, err := s.managedField(ctx, callerID, fieldID)
	if err != nil {
		return err
	}

	err = s.fields.Delete(ctx, fieldID)
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}

	s.cache.Invalidate(ctx)

	s.logger.Info("Field deleted",
		zap.String("field_id", fieldID.String()),
		zap.String("caller_id", callerID.String()),
	)

	return nil
}

// AddImage привязывает загруженное фото к полю
func (s *FieldService) AddImage(ctx context.Context, callerID, fieldID uuid.UUID, filePath string, caption *string) (*model.FieldImage, error) {
	_, err := s.managedField(ctx, callerID, fieldID)
	if err != nil {
		return nil, err
	}

	if filePath == "" {
		return nil, apperr.Validation("file path is required")
	}

	image := &model.FieldImage{
		FieldID:  fieldID,
		FilePath: filePath,
		Caption:  caption,
	}

	err = s.fields.AddImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("add field image: %w", err)
	}

	s.cache.Invalidate(ctx)

	return image, nil
}

// CanManage проверяет права до загрузки файла
func (s *FieldService) CanManage(ctx context.Context, callerID, fieldID uuid.UUID) error {
	_, err := s.managedField(ctx, callerID, fieldID)
	return err
}

func (s *FieldService) managedField(ctx context.Context, callerID, fieldID uuid.UUID) (*model.Field, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}

	if field == nil {
		return nil, apperr.NotFound("field not found")
	}

	if !CanManageField(caller, field) {
		return nil, apperr.Forbidden("only the field owner or an admin can manage this field")
	}

	return field, nil
}

func (s *FieldService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return apperr.Validation(fmt.Sprintf("field %s failed %s validation", first.Field(), first.Tag()))
	}

	return apperr.Validation(err.Error())
}
