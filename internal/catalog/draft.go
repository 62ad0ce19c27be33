package catalog

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Errors reported by UploadDraft.Validate. Their text is shown to the admin.
var (
	ErrFieldsRequired  = errors.New("All fields are required")
	ErrInvalidNumber   = errors.New("Price and stock must be non-negative numbers")
	ErrUnknownCategory = errors.New("Select a valid category")
)

// UploadDraft is the admin form state before submission. Image fields hold
// data URLs.
type UploadDraft struct {
	Title     string `form:"title" validate:"required"`
	Price     string `form:"price" validate:"required"`
	Stock     string `form:"stock" validate:"required"`
	Category  string `form:"category" validate:"required"`
	Details   string `form:"details" validate:"required"`
	Image     string `form:"image" validate:"required"`
	SubImage1 string `form:"subimage1" validate:"required"`
	SubImage2 string `form:"subimage2" validate:"required"`
	SubImage3 string `form:"subimage3" validate:"required"`
}

// ImageFields names the multipart fields that carry files.
var ImageFields = []string{"image", "subimage1", "subimage2", "subimage3"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims surrounding whitespace from the text fields.
func (d *UploadDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Price = strings.TrimSpace(d.Price)
	d.Stock = strings.TrimSpace(d.Stock)
	d.Category = strings.TrimSpace(d.Category)
	d.Details = strings.TrimSpace(d.Details)
}

// Validate checks that all nine fields are set, that price and stock are
// non-negative numbers and that the category is known.
func (d UploadDraft) Validate(categories Categories) error {
	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return ErrFieldsRequired
		}
		return err
	}
	price, err := decimal.NewFromString(d.Price)
	if err != nil || price.IsNegative() {
		return ErrInvalidNumber
	}
	stock, err := decimal.NewFromString(d.Stock)
	if err != nil || stock.IsNegative() || !stock.IsInteger() {
		return ErrInvalidNumber
	}
	if len(categories) > 0 && !categories.Contains(d.Category) {
		return ErrUnknownCategory
	}
	return nil
}

// UploadPayload is the JSON body accepted by the backend upload endpoint.
type UploadPayload struct {
	Title     string      `json:"title"`
	Price     json.Number `json:"price"`
	Stock     int64       `json:"stock"`
	Category  string      `json:"category"`
	Details   string      `json:"details"`
	Image     string      `json:"image"`
	SubImage1 string      `json:"subimage1"`
	SubImage2 string      `json:"subimage2"`
	SubImage3 string      `json:"subimage3"`
}

// Payload converts a validated draft into the upload body.
func (d UploadDraft) Payload() (UploadPayload, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return UploadPayload{}, ErrInvalidNumber
	}
	stock, err := decimal.NewFromString(d.Stock)
	if err != nil {
		return UploadPayload{}, ErrInvalidNumber
	}
	return UploadPayload{
		Title:     d.Title,
		Price:     json.Number(price.String()),
		Stock:     stock.IntPart(),
		Category:  d.Category,
		Details:   d.Details,
		Image:     d.Image,
		SubImage1: d.SubImage1,
		SubImage2: d.SubImage2,
		SubImage3: d.SubImage3,
	}, nil
}
