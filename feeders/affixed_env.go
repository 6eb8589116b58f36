package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// AffixedEnvFeeder is a feeder that reads environment variables with a prefix and/or suffix.
// Fields opt in with an `env` tag; the variable name is PREFIX_TAG_SUFFIX in upper case.
type AffixedEnvFeeder struct {
	Prefix string
	Suffix string
}

// NewAffixedEnvFeeder creates a new AffixedEnvFeeder with the specified prefix and suffix
func NewAffixedEnvFeeder(prefix, suffix string) AffixedEnvFeeder {
	return AffixedEnvFeeder{Prefix: prefix, Suffix: suffix}
}

// Feed reads environment variables and populates the provided structure
func (f AffixedEnvFeeder) Feed(structure any) error {
	inputType := reflect.TypeOf(structure)
	if inputType == nil || inputType.Kind() != reflect.Ptr || inputType.Elem().Kind() != reflect.Struct {
		return ErrEnvInvalidStructure
	}
	if f.Prefix == "" && f.Suffix == "" {
		return ErrEnvEmptyPrefixAndSuffix
	}

	return processStructFields(reflect.ValueOf(structure).Elem(), strings.ToUpper(f.Prefix), strings.ToUpper(f.Suffix))
}

// processStructFields iterates through struct fields
func processStructFields(rv reflect.Value, prefix, suffix string) error {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)

		if err := processField(field, &fieldType, prefix, suffix); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

// processField handles a single struct field
func processField(field reflect.Value, fieldType *reflect.StructField, prefix, suffix string) error {
	switch field.Kind() {
	case reflect.Struct:
		return processStructFields(field, prefix, suffix)
	case reflect.Pointer:
		if !field.IsZero() && field.Elem().Kind() == reflect.Struct {
			return processStructFields(field.Elem(), prefix, suffix)
		}
		return nil
	default:
		if envTag, exists := fieldType.Tag.Lookup("env"); exists {
			return setFieldFromEnv(field, envTag, prefix, suffix)
		}
		return nil
	}
}

// setFieldFromEnv sets a field value from an environment variable
func setFieldFromEnv(field reflect.Value, envTag, prefix, suffix string) error {
	envName := strings.ToUpper(envTag)
	if prefix != "" {
		envName = prefix + "_" + envName
	}
	if suffix != "" {
		envName = envName + "_" + suffix
	}

	if envValue := os.Getenv(envName); envValue != "" {
		return setFieldValue(field, envValue)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return ErrEnvFieldCannotBeSet
	}

	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot convert value to duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := strings.Split(strValue, ",")
		values := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				values = reflect.Append(values, reflect.ValueOf(part).Convert(field.Type().Elem()))
			}
		}
		field.Set(values)
		return nil
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}

	field.Set(reflect.ValueOf(convertedValue).Convert(field.Type()))
	return nil
}
