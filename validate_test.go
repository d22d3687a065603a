package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateTransactionRequest(t *testing.T) {
	valid := CreateTransactionRequest{
		Date:       NewDate(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		UserId:     1,
		CategoryId: 2,
		Amount:     decimal.NewFromFloat(9.99),
	}
	assert.NoError(t, validate.Struct(valid))

	missing := valid
	missing.Date = Date{}
	missing.Amount = decimal.Zero
	err := validate.Struct(missing)
	assert.Error(t, err)
	assert.ElementsMatch(t, []string{"date", "amount"}, missingFields(err))
}

func TestValidateUserRequest(t *testing.T) {
	err := validate.Struct(CreateUserRequest{Name: "Ana"})
	assert.ElementsMatch(t, []string{"email", "password"}, missingFields(err))

	assert.NoError(t, validate.Struct(CreateUserRequest{Name: "Ana", Email: "a@example.com", Password: "x"}))
}
