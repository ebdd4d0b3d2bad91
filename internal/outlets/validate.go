package outlets

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/outlet_survey/backend/internal/models"
)

const DateLayout = "2006-01-02"

var (
	lettersOnly = regexp.MustCompile(`^[A-Za-z\s]+$`)
	phoneDigits = regexp.MustCompile(`^[0-9]{1,10}$`)
)

// CaptureRequest is the validation form submitted for one outlet. Nil image
// fields keep the image already stored on a re-validation.
type CaptureRequest struct {
	OutletName           string    `json:"outlet_name" validate:"required,not_tbd"`
	OutletType           string    `json:"outlet_type" validate:"omitempty,oneof=retail salon"`
	Address              string    `json:"address"`
	ContactName          string    `json:"contact_name" validate:"required,not_null,letters"`
	ContactPhone         string    `json:"contact_phone" validate:"required,phone_digits"`
	BusinessPhone        string    `json:"business_phone" validate:"required,phone_digits"`
	NumberOfStylists     int       `json:"number_of_stylists" validate:"gte=0"`
	Headerboard          bool      `json:"headerboard"`
	HeaderboardAgreement bool      `json:"headerboard_agreement"`
	Painted              bool      `json:"painted"`
	PaintedAgreement     bool      `json:"painted_agreement"`
	Telescopic           bool      `json:"telescopic"`
	TelescopicAgreement  bool      `json:"telescopic_agreement"`
	OutletFrontImage     *string   `json:"outlet_front_image"`
	OutletSideImage      *string   `json:"outlet_side_image"`
	TelescopicImage      *string   `json:"telescopic_image"`
	ProductNames         []string  `json:"product_names"`
	ProductImages        []*string `json:"product_images"`
	AgreementDate        string    `json:"partnership_agreement_date" validate:"required,datetime=2006-01-02"`
	ExpiringDate         string    `json:"partnership_expiring_date" validate:"required,datetime=2006-01-02"`
}

type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rule the submitted form failed.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return strings.Join(msgs, " ")
}

func (e *ValidationError) add(field, message string) {
	for _, p := range e.Problems {
		if p.Message == message {
			return
		}
	}
	e.Problems = append(e.Problems, Problem{Field: field, Message: message})
}

// NewValidator returns a validator that reports json field names and knows the
// capture form rules.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("not_tbd", func(fl validator.FieldLevel) bool {
		return !strings.EqualFold(strings.TrimSpace(fl.Field().String()), "TBD")
	})
	_ = v.RegisterValidation("not_null", func(fl validator.FieldLevel) bool {
		return !strings.EqualFold(strings.TrimSpace(fl.Field().String()), "null")
	})
	_ = v.RegisterValidation("letters", func(fl validator.FieldLevel) bool {
		return lettersOnly.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return phoneDigits.MatchString(fl.Field().String())
	})
	return v
}

// Normalize trims the free-text fields.
func (r *CaptureRequest) Normalize() {
	r.OutletName = strings.TrimSpace(r.OutletName)
	r.OutletType = strings.ToLower(strings.TrimSpace(r.OutletType))
	r.Address = strings.TrimSpace(r.Address)
	r.ContactName = strings.TrimSpace(r.ContactName)
	r.ContactPhone = strings.TrimSpace(r.ContactPhone)
	r.BusinessPhone = strings.TrimSpace(r.BusinessPhone)
	r.AgreementDate = strings.TrimSpace(r.AgreementDate)
	r.ExpiringDate = strings.TrimSpace(r.ExpiringDate)
}

// Check validates the form against the record it will produce. existing is
// nil on a first validation.
func (r CaptureRequest) Check(v *validator.Validate, existing *models.CaptureDetails, existingType string) error {
	verr := &ValidationError{}

	if err := v.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), fieldMessage(fe))
		}
	}

	agreement, expiring, err := r.Dates()
	if err == nil && agreement != nil && expiring != nil && expiring.Before(*agreement) {
		verr.add("partnership_expiring_date", "Partnership expiry date cannot be before the agreement date.")
	}

	outletType := r.OutletType
	if outletType == "" && existing != nil {
		outletType = existingType
	}
	if outletType == "" {
		verr.add("outlet_type", "Please select an outlet type.")
	}
	if outletType == models.OutletTypeSalon && r.NumberOfStylists <= 0 {
		verr.add("number_of_stylists", "Number of Stylists must be greater than zero for Salon outlets.")
	}

	front, side, telescopic := r.images(existing)
	if isBlank(front) || isBlank(side) {
		verr.add("outlet_front_image", "Front and side images are required for validation.")
	}
	if r.Telescopic && isBlank(telescopic) {
		verr.add("telescopic_image", "Telescopic image is required when telescopic is present.")
	}

	if r.ProductNames != nil && len(r.ProductImages) != len(r.ProductNames) {
		verr.add("product_images", "Product names and product images must have the same length.")
	} else {
		_, images := r.products(existing)
		for _, img := range images {
			if isBlank(img) {
				verr.add("product_images", "Each selected product requires an image.")
				break
			}
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// Dates parses the partnership dates; empty values yield nil.
func (r CaptureRequest) Dates() (*time.Time, *time.Time, error) {
	agreement, err := parseDate(r.AgreementDate)
	if err != nil {
		return nil, nil, err
	}
	expiring, err := parseDate(r.ExpiringDate)
	if err != nil {
		return nil, nil, err
	}
	return agreement, expiring, nil
}

func (r CaptureRequest) images(existing *models.CaptureDetails) (front, side, telescopic *string) {
	front, side, telescopic = r.OutletFrontImage, r.OutletSideImage, r.TelescopicImage
	if existing == nil {
		return front, side, telescopic
	}
	if front == nil {
		front = existing.OutletFrontImage
	}
	if side == nil {
		side = existing.OutletSideImage
	}
	if telescopic == nil {
		telescopic = existing.TelescopicImage
	}
	return front, side, telescopic
}

// products resolves the product selection. A nil image entry reuses the image
// already stored for the same product name.
func (r CaptureRequest) products(existing *models.CaptureDetails) ([]string, []*string) {
	if r.ProductNames == nil {
		if existing == nil {
			return []string{}, []*string{}
		}
		return existing.ProductNames, existing.ProductImages
	}
	stored := map[string]*string{}
	if existing != nil {
		for i, name := range existing.ProductNames {
			if i < len(existing.ProductImages) {
				stored[name] = existing.ProductImages[i]
			}
		}
	}
	images := make([]*string, len(r.ProductNames))
	for i := range r.ProductNames {
		if i < len(r.ProductImages) && r.ProductImages[i] != nil {
			images[i] = r.ProductImages[i]
			continue
		}
		images[i] = stored[r.ProductNames[i]]
	}
	return r.ProductNames, images
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "outlet_name":
		return `Outlet Name is required and cannot be "TBD".`
	case "outlet_type":
		return "Please select an outlet type."
	case "contact_name":
		if fe.Tag() == "letters" {
			return "Contact name must contain letters only."
		}
		return "Contact name is required and cannot be null or empty."
	case "contact_phone":
		return "Contact phone must be 1-10 digits (numbers only) and cannot be null or empty."
	case "business_phone":
		return "Business phone must be 1-10 digits (numbers only) and cannot be null or empty."
	case "partnership_agreement_date", "partnership_expiring_date":
		if fe.Tag() == "datetime" {
			return "Partnership dates must use the YYYY-MM-DD format."
		}
		return "Partnership agreement and expiry dates are required."
	case "number_of_stylists":
		return "Number of Stylists cannot be negative."
	}
	return fe.Field() + " is invalid."
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
