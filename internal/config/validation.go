package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// FieldError is a validation failure for one environment variable.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator reads typed values from getenv and accumulates every problem
// instead of stopping at the first one.
type Validator struct {
	getenv func(string) string
	errs   *multierror.Error
}

func NewValidator(getenv func(string) string) *Validator {
	return &Validator{getenv: getenv}
}

func (v *Validator) AddError(field, message string) {
	v.errs = multierror.Append(v.errs, FieldError{Field: field, Message: message})
}

// Err returns the accumulated errors, or nil.
func (v *Validator) Err() error {
	if v.errs == nil {
		return nil
	}
	v.errs.ErrorFormat = formatErrors
	return v.errs.ErrorOrNil()
}

func formatErrors(errs []error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, err)
	}
	return sb.String()
}

func (v *Validator) String(key, def string) string {
	if s := v.getenv(key); s != "" {
		return s
	}
	return def
}

func (v *Validator) Required(key string) string {
	s := v.getenv(key)
	if s == "" {
		v.AddError(key, "required environment variable not set")
	}
	return s
}

func (v *Validator) Int(key string, def int) int {
	s := v.getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return def
	}
	return n
}

func (v *Validator) PositiveInt(key string, def int) int {
	n := v.Int(key, def)
	if n <= 0 && v.getenv(key) != "" {
		v.AddError(key, "must be a positive integer")
	}
	return n
}

func (v *Validator) Int64(key string, def int64) int64 {
	s := v.getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return def
	}
	if n < 0 {
		v.AddError(key, "must not be negative")
		return def
	}
	return n
}

func (v *Validator) Bool(key string, def bool) bool {
	s := v.getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		v.AddError(key, "must be true or false")
		return def
	}
	return b
}

func (v *Validator) Duration(key string, def time.Duration) time.Duration {
	s := v.getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 1h, 30m)")
		return def
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
		return def
	}
	return d
}

// URL checks that value is an absolute http or https URL.
func (v *Validator) URL(key, value string) {
	if value == "" {
		return
	}
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
	}
}

// Addr checks a listen address of the form [host]:port.
func (v *Validator) Addr(key, value string) {
	if value == "" {
		return
	}
	i := strings.LastIndex(value, ":")
	if i < 0 {
		v.AddError(key, "must be of the form [host]:port")
		return
	}
	port, err := strconv.Atoi(value[i+1:])
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

func (v *Validator) Enum(key, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}
