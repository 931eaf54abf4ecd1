package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CapacityPolicy decides whether over-capacity moves are warned about or refused.
type CapacityPolicy string

const (
	CapacitySoft CapacityPolicy = "soft"
	CapacityHard CapacityPolicy = "hard"
)

// Breed is a breed recognised by the farm.
type Breed struct {
	Name string `bson:"name" json:"name" validate:"required"`
	Code string `bson:"code" json:"code" validate:"required,alpha,min=2,max=4"`
}

// Farm holds the configuration of one farm and its owning account.
type Farm struct {
	ID             string         `bson:"_id" json:"id"`
	OwnerID        string         `bson:"owner_id" json:"owner_id" validate:"required"`
	Name           string         `bson:"name" json:"name" validate:"required,max=120"`
	Currency       string         `bson:"currency" json:"currency" validate:"required,oneof=USD NGN EUR GBP GNF XOF XAF KES GHS ZAR"`
	Timezone       string         `bson:"timezone" json:"timezone" validate:"required"`
	GestationDays  int            `bson:"gestation_days" json:"gestation_days" validate:"min=28,max=35"`
	PalpationDays  int            `bson:"palpation_days" json:"palpation_days" validate:"min=10,max=20"`
	WeaningDays    int            `bson:"weaning_days" json:"weaning_days" validate:"min=28,max=60"`
	Breeds         []Breed        `bson:"breeds" json:"breeds" validate:"dive"`
	TagPrefix      string         `bson:"tag_prefix" json:"tag_prefix" validate:"omitempty,alphanum,max=6"`
	CapacityPolicy CapacityPolicy `bson:"capacity_policy" json:"capacity_policy" validate:"omitempty,oneof=soft hard"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updated_at"`
}

var validate = validator.New()

// Normalize applies defaults and canonical casing in place.
func (f *Farm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	f.Timezone = strings.TrimSpace(f.Timezone)
	f.TagPrefix = strings.ToUpper(strings.TrimSpace(f.TagPrefix))
	if f.CapacityPolicy == "" {
		f.CapacityPolicy = CapacitySoft
	}
	for i := range f.Breeds {
		f.Breeds[i].Name = strings.TrimSpace(f.Breeds[i].Name)
		f.Breeds[i].Code = strings.ToUpper(strings.TrimSpace(f.Breeds[i].Code))
	}
}

// Validate checks the configuration ranges and breed list.
func (f Farm) Validate() error {
	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Validationf("%s failed %s%s", fe.Namespace(), fe.Tag(), paramSuffix(fe.Param()))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := time.LoadLocation(f.Timezone); err != nil {
		return Validationf("unknown timezone %q", f.Timezone)
	}

	seen := make(map[string]struct{}, len(f.Breeds))
	for _, b := range f.Breeds {
		if _, dup := seen[b.Code]; dup {
			return Validationf("duplicate breed code %s", b.Code)
		}
		seen[b.Code] = struct{}{}
	}
	return nil
}

// HasBreed reports whether code is recognised. An empty breed list accepts any code.
func (f Farm) HasBreed(code string) bool {
	if len(f.Breeds) == 0 {
		return true
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, b := range f.Breeds {
		if b.Code == code {
			return true
		}
	}
	return false
}

// Location returns the farm's display timezone, UTC when unset or invalid.
func (f Farm) Location() *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil || f.Timezone == "" {
		return time.UTC
	}
	return loc
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
