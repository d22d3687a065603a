package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const defaultUserType = "user"

// Date is a calendar day. It is serialized as "YYYY-MM-DD" and also accepts
// RFC 3339 timestamps on input, keeping only the date part.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		*d = Date{}
		return nil
	}

	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid date %q", raw)
		}
	}
	*d = NewDate(t)
	return nil
}

type User struct {
	Id           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PhoneContact *string `json:"phone_contact"`
	Type         string  `json:"type"`
	PasswordHash string  `json:"-"`
}

type Category struct {
	Id             int64  `json:"id"`
	Name           string `json:"name"`
	CategoryTypeId int64  `json:"category_type_id"`
}

type Transaction struct {
	Id         int64           `json:"id"`
	Date       Date            `json:"date"`
	UserId     int64           `json:"user_id"`
	CategoryId int64           `json:"category_id"`
	LocationId *int64          `json:"location_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// TransactionPatch carries the fields of an edit. Absent fields keep their
// stored value.
type TransactionPatch struct {
	Amount     decimal.NullDecimal
	CategoryId *int64
	Date       *Date
}

// Expense is a transaction joined with its category, as listed per month.
type Expense struct {
	Id             int64           `json:"id"`
	Date           Date            `json:"date"`
	UserId         int64           `json:"user_id"`
	CategoryTypeId int64           `json:"category_type_id"`
	CategoryId     int64           `json:"category_id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
}

type CreateUserRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required"`
	Password     string `json:"password" validate:"required"`
	PhoneContact string `json:"phone_contact"`
	Type         string `json:"type"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateTransactionRequest struct {
	Date       Date            `json:"date" validate:"required"`
	UserId     int64           `json:"user_id" validate:"required"`
	CategoryId int64           `json:"category_id" validate:"required"`
	LocationId *int64          `json:"location_id"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

type CreateCategoryRequest struct {
	Name         string `json:"name" validate:"required"`
	CategoryType int64  `json:"category_type" validate:"required"`
}

type EditTransactionRequest struct {
	Id         int64               `json:"id"`
	Amount     decimal.NullDecimal `json:"amount"`
	CategoryId *int64              `json:"category_id"`
	Date       *Date               `json:"date"`
}

func (r EditTransactionRequest) Patch() TransactionPatch {
	return TransactionPatch{
		Amount:     r.Amount,
		CategoryId: r.CategoryId,
		Date:       r.Date,
	}
}

type loginResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type editTransactionResponse struct {
	Message     string      `json:"message"`
	Transaction Transaction `json:"transaction"`
}

type connectionResponse struct {
	Now time.Time `json:"now"`
}
