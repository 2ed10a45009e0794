package service

import (
	"math"
	"math/bits"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
)

const msPerHour = int64(time.Hour / time.Millisecond)

// PriceFor считает стоимость линейно по длительности с точностью до миллисекунды,
// округляя до минимальной единицы валюты (половина вверх).
// Произведение цены на длительность считается в 128 битах; результат, не влезающий в int64, даёт validation.
func PriceFor(pricePerHour int64, start, end time.Time) (int64, error) {
	ms := end.Sub(start).Milliseconds()
	if ms <= 0 || pricePerHour <= 0 {
		return 0, nil
	}

	hi, lo := bits.Mul64(uint64(pricePerHour), uint64(ms))
	lo, carry := bits.Add64(lo, uint64(msPerHour/2), 0)
	hi += carry

	// Div64 паникует, если частное не влезает в 64 бита
	if hi >= uint64(msPerHour) {
		return 0, errPriceOverflow()
	}

	total, _ := bits.Div64(hi, lo, uint64(msPerHour))
	if total > math.MaxInt64 {
		return 0, errPriceOverflow()
	}

	return int64(total), nil
}

func errPriceOverflow() error {
	return apperr.Validation("booking price exceeds the supported range")
}
