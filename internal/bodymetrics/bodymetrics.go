package bodymetrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/2beens/ironlog/pkg"
)

var (
	ErrProfileNotFound   = errors.New("profile not found")
	ErrWeightLogNotFound = errors.New("weight log not found")
)

// UserProfile is created lazily on first read, seeded from the
// identity claims.
type UserProfile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name"`
	PhotoURL    *string   `json:"photo_url"`
	HeightCm    *float64  `json:"height_cm"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WeightLog holds one weight measurement. One log per calendar date:
// a second write for the same date overwrites the first, keeping its id.
type WeightLog struct {
	ID        string    `json:"id"`
	Weight    float64   `json:"weight"`
	Date      pkg.Date  `json:"date"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func (wl WeightLog) Validate() error {
	if wl.Weight <= 0 || wl.Weight > 1000 {
		return fmt.Errorf("weight must be between 0 and 1000")
	}
	return nil
}
