package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grayforge/keyward/pkg/iamerr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads a JSON request body into dst, rejecting oversized or
// malformed payloads.
func Decode(r *http.Request, dst any) error {
	const maxBody = 1 << 20 // 1 MiB

	body := http.MaxBytesReader(nil, r.Body, maxBody)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("request body too large (max 1 MiB)")
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// Validate runs struct-tag validation, returning the first failure
// rendered as a BadRequest.
func Validate(domain, op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return iamerr.BadRequest(domain, op, err.Error())
	}
	fe := ve[0]
	return iamerr.BadRequest(domain, op, fmt.Sprintf("field %q failed %q validation", jsonFieldName(fe), fe.Tag()))
}

// DecodeAndValidate decodes and validates dst in one call, writing the
// response envelope and returning false on failure.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, domain, op string, dst any) bool {
	if err := Decode(r, dst); err != nil {
		RespondErr(w, iamerr.BadRequest(domain, op, err.Error()))
		return false
	}
	if err := Validate(domain, op, dst); err != nil {
		RespondErr(w, err)
		return false
	}
	return true
}

func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return toSnakeCase(ns)
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
