package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePhoneNumber checks a phone number against the given region (e.g. "US").
func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil
	}
	if countryCode == "" {
		countryCode = "US"
	}
	num, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return fmt.Errorf("invalid phone number: %v", err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return fmt.Errorf("invalid phone number for region %s", countryCode)
	}
	return nil
}

// GenerateUniqueFilename builds a collision-free object name, keeping the
// original file's extension.
func GenerateUniqueFilename(original string) string {
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%d_%s%s", timestamp, uuid.NewString(), strings.ToLower(filepath.Ext(original)))
}

// ProcessValidationErrors flattens validator errors into field => message.
func ProcessValidationErrors(err error) map[string]string {
	errorsMap := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			errorsMap[fieldErr.Field()] = fmt.Sprintf("failed on '%s'", fieldErr.Tag())
		}
	} else {
		errorsMap["error"] = err.Error()
	}
	return errorsMap
}

var validate = validator.New()

// ValidateInput runs struct-tag validation on an input payload.
func ValidateInput(input any) error {
	return validate.Struct(input)
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool)
	result := []T{}
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func NilIfEmpty[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// ClampScore forces an oracle score into the [0,100] contract range.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
