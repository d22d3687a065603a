package main

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

// newValidator teaches the validator that a zero amount or an unset date
// counts as missing for `required`.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok || d.IsZero() {
			return nil
		}
		return d.String()
	}, decimal.Decimal{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		d, ok := field.Interface().(Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.String()
	}, Date{})
	return v
}

// missingFields lists the JSON names of the fields that failed validation.
func missingFields(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
