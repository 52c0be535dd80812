package dto

import (
	"html"
	"net/netip"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"engagement-rewards/pkg/money"
	"engagement-rewards/pkg/netguard"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var videoIDRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

var customValidators = map[string]validator.Func{
	"safe_id":  validateSafeID,
	"safe_url": validateSafeURL,
	"money":    validateMoney,
}

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	for tag, fn := range customValidators {
		_ = v.RegisterValidation(tag, fn)
	}
}

// validateSafeID accepts video identifiers: letters, digits, '_', '-' and '.'.
func validateSafeID(fl validator.FieldLevel) bool {
	return videoIDRe.MatchString(fl.Field().String())
}

// validateSafeURL accepts absolute http(s) URLs naming a public host.
// localhost and IP literals outside public unicast space are refused; names
// resolving to private addresses are caught at dial time. Empty passes;
// pair with "required" when the URL is mandatory.
func validateSafeURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Hostname() == "" || u.User != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if netguard.IsLocalName(host) {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return netguard.IsPublic(addr)
	}
	return true
}

func validateMoney(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	minor, err := money.Parse(raw)
	return err == nil && minor > 0
}

// SanitizeStruct cleans the exported string and *string fields of a struct
// pointer. By default values are trimmed and HTML-escaped. A field tagged
// `sanitize:"trim"` is only trimmed, so URLs and account numbers keep their bytes.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	elem := rv.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}
		if field.Kind() != reflect.String {
			continue
		}
		clean := escapeText
		if elem.Type().Field(i).Tag.Get("sanitize") == "trim" {
			clean = strings.TrimSpace
		}
		field.SetString(clean(field.String()))
	}
}

func escapeText(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
