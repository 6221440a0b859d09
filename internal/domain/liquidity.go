package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidityBalance is the user-reported balance held in one Medio.
type LiquidityBalance struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Medio     Medio           `json:"medio"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// LiquidityHistory is an append-only snapshot written on every balance update.
type LiquidityHistory struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Medio     Medio           `json:"medio"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
}

// User is an account holder.
type User struct {
	ID                      int64      `json:"id"`
	Email                   string     `json:"email"`
	Name                    string     `json:"name"`
	PasswordHash            string     `json:"-"`
	IsVerified              bool       `json:"isVerified"`
	VerificationToken       *string    `json:"-"`
	VerificationTokenExpiry *time.Time `json:"-"`
	CreatedAt               time.Time  `json:"createdAt"`
}
