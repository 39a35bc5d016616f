package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/kareem-ic/paysim-sandbox/internal/card"
)

// New returns a validator with the luhn tag registered. Field errors are
// reported under their JSON names. It panics if the luhn tag cannot be
// registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(jsonName)
	if err := v.RegisterValidation("luhn", luhn); err != nil {
		panic(fmt.Sprintf("validation: register luhn: %v", err))
	}
	return v
}

// luhn accepts all-digit strings with a valid Luhn checksum.
func luhn(fl validatorv10.FieldLevel) bool {
	return card.Valid(fl.Field().String())
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
