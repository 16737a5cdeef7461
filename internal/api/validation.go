package api

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Accepted layouts for timestamps in query parameters and request bodies.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// registerValidators teaches gin's validator the isotime tag and makes it report
// fields by their wire names.
var registerValidators = sync.OnceValue(func() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(wireName)
	if err := v.RegisterValidation("isotime", func(fl validator.FieldLevel) bool {
		_, err := parseTime(fl.Field().String(), time.UTC)
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register isotime validation: %w", err)
	}
	return nil
})

func wireName(field reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// parseTime reads a timestamp. Values without a zone are wall-clock times in loc.
func parseTime(value string, loc *time.Location) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if strings.Contains(layout, "Z07:00") {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// knownKeys lists the wire names a request struct accepts.
func knownKeys(dst any) map[string]bool {
	typ := reflect.TypeOf(dst)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	keys := make(map[string]bool, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		if name := wireName(typ.Field(i)); name != "" {
			keys[name] = true
		}
	}
	return keys
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "isotime":
		return "Enter a valid date/time."
	case "gt":
		return "Ensure this value is greater than " + fe.Param() + "."
	case "gte", "min":
		return "Ensure this value is greater than or equal to " + fe.Param() + "."
	case "lte", "max":
		return "Ensure this value is less than or equal to " + fe.Param() + "."
	case "oneof":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	default:
		return "Enter a valid value."
	}
}
