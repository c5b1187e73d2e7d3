package shipping

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxDeclaredValue is the carrier ceiling for price and declared value, in dinars.
const MaxDeclaredValue = 150000

// Algerian mobile: 0, then 5, 6 or 7, then eight digits.
var phonePattern = regexp.MustCompile(`^0[567][0-9]{8}$`)

// ValidPhone reports whether phone is an Algerian mobile number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("dzphone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	v.RegisterStructValidation(shipmentDeliveryRule, ShipmentRequest{})
	return v
}

// Home delivery needs an address; pickup needs a center.
func shipmentDeliveryRule(sl validator.StructLevel) {
	req := sl.Current().Interface().(ShipmentRequest)
	if req.IsStopDesk {
		if req.StopDeskID <= 0 {
			sl.ReportError(req.StopDeskID, "stopDeskId", "StopDeskID", "stopdesk", "")
		}
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		sl.ReportError(req.Address, "address", "Address", "homeaddress", "")
	}
}

// validateStruct runs the tag and struct rules and converts the first
// violation into a validation Error naming the field.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewError(KindValidation, err.Error()).WithCause(err)
	}
	fe := verrs[0]
	return NewError(KindValidation, violationMessage(fe)).WithField(fe.Field()).WithCause(err)
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "dzphone":
		return "must be an Algerian mobile number (05, 06 or 07 followed by 8 digits)"
	case "stopdesk":
		return "a pickup center is required for stop desk delivery"
	case "homeaddress":
		return "an address is required for home delivery"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
