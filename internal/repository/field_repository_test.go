package repository_test

import (
	"context"
	"testing"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRepository_CreateAndGet(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner@example.com")

	lat, lng := 55.75, 37.61
	field := &model.Field{
		OwnerID:      owner.ID,
		Name:         "Arena",
		Description:  "Indoor futsal court",
		PricePerHour: 120000,
		Address:      "Lenina 5",
		Lat:          &lat,
		Lng:          &lng,
		IsActive:     true,
	}
	require.NoError(t, f.fields.Create(ctx, field))
	assert.NotEqual(t, uuid.Nil, field.ID)

	caption := "Main hall"
	require.NoError(t, f.fields.AddImage(ctx, &model.FieldImage{FieldID: field.ID, FilePath: "field-images/a.png", Caption: &caption}))
	require.NoError(t, f.fields.AddImage(ctx, &model.FieldImage{FieldID: field.ID, FilePath: "field-images/b.png"}))

	got, err := f.fields.GetByID(ctx, field.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Arena", got.Name)
	assert.Equal(t, int64(120000), got.PricePerHour)
	require.NotNil(t, got.Lat)
	assert.InDelta(t, lat, *got.Lat, 1e-9)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "field-images/a.png", got.Images[0].FilePath)
	assert.Equal(t, "Main hall", *got.Images[0].Caption)
	assert.Nil(t, got.Images[1].Caption)

	missing, err := f.fields.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = f.fields.Create(ctx, &model.Field{OwnerID: uuid.New(), Name: "Ghost", Description: "x", Address: "y"})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	err = f.fields.AddImage(ctx, &model.FieldImage{FieldID: uuid.New(), FilePath: "field-images/c.png"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestFieldRepository_ListAndUpdate(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner@example.com")
	other := f.user(t, "other@example.com")

	active := f.field(t, owner)
	hidden := f.field(t, owner)
	foreign := f.field(t, other)

	hidden.IsActive = false
	hidden.Name = "Closed for repairs"
	require.NoError(t, f.fields.Update(ctx, hidden))

	err := f.fields.Update(ctx, &model.Field{ID: uuid.New(), Name: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	listed, err := f.fields.List(ctx, service.FieldFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{active.ID, foreign.ID}, fieldIDs(listed))

	owned, err := f.fields.List(ctx, service.FieldFilter{OwnerID: &owner.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{active.ID, hidden.ID}, fieldIDs(owned))

	all, err := f.fields.List(ctx, service.FieldFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ids, err := f.fields.IDsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{active.ID, hidden.ID}, ids)

	got, err := f.fields.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, "Closed for repairs", got.Name)
	assert.False(t, got.IsActive)
}

func TestFieldRepository_Delete(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner@example.com")
	renter := f.user(t, "renter@example.com")

	booked := f.field(t, owner)
	f.booking(t, renter, booked, at(10, 0), at(11, 0))

	err := f.fields.Delete(ctx, booked.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	free := f.field(t, owner)
	require.NoError(t, f.fields.AddImage(ctx, &model.FieldImage{FieldID: free.ID, FilePath: "field-images/a.png"}))
	require.NoError(t, f.fields.Delete(ctx, free.ID))

	var images int
	err = f.pool.QueryRow(ctx, `SELECT count(*) FROM field_images WHERE field_id = $1`, free.ID).Scan(&images)
	require.NoError(t, err)
	assert.Zero(t, images)

	err = f.fields.Delete(ctx, free.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func fieldIDs(fields []*model.Field) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	return ids
}
