package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

const msgMissingFields = "Missing required fields: query and type"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// the query must match the shape of the sibling Type field
	_ = v.RegisterValidation("threatquery", func(fl validator.FieldLevel) bool {
		kind := fl.Parent().FieldByName("Type")
		if !kind.IsValid() {
			return false
		}
		_, err := entity.ParseQuery(fl.Field().String(), entity.QueryKind(kind.String()))
		return err == nil
	})

	return v
}

// ThreatIntelRequest is the body of POST /api/threat-intel
type ThreatIntelRequest struct {
	Query string `json:"query" validate:"required,threatquery"`
	Type  string `json:"type" validate:"required,oneof=ip domain hash"`
}

// Validate checks the request and returns the parsed query. The error
// message is the one shown to clients.
func (req ThreatIntelRequest) Validate() (entity.Query, error) {
	err := validate.Struct(req)
	if err == nil {
		return entity.ParseQuery(req.Query, entity.QueryKind(req.Type))
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return entity.Query{}, err
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return entity.Query{}, errors.New(msgMissingFields)
		}
	}

	// ParseQuery reports the first failing rule in the order clients expect
	if _, perr := entity.ParseQuery(req.Query, entity.QueryKind(req.Type)); perr != nil {
		return entity.Query{}, errors.New(entity.InvalidQueryMessage(perr))
	}
	return entity.Query{}, err
}
