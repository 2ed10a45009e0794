package model

import (
	"time"

	"github.com/google/uuid"
)

type Field struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PricePerHour int64     `json:"price_per_hour"` // в минимальных единицах валюты
	Address      string    `json:"address"`
	Lat          *float64  `json:"lat"`
	Lng          *float64  `json:"lng"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`

	Images []*FieldImage `json:"field_images,omitempty"`
}

// Summary возвращает краткое описание поля для списков бронирований
func (f *Field) Summary() *FieldSummary {
	return &FieldSummary{Name: f.Name, Address: f.Address}
}

type FieldSummary struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type FieldImage struct {
	ID        uuid.UUID `json:"id"`
	FieldID   uuid.UUID `json:"field_id"`
	FilePath  string    `json:"file_path"`
	Caption   *string   `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}
