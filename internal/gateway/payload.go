package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spinsa/inventario/internal/database"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decode unmarshals raw into dst, rejecting unknown keys, and validates it.
func (g *Gateway) decode(raw json.RawMessage, dst any) error {
	if isNull(raw) {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalid("Datos no válidos.", err)
	}
	if err := g.validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(fmt.Sprintf("Campo %s no válido (%s).", fe.Field(), fe.Tag()), err)
		}
		return invalid("Datos no válidos.", err)
	}
	return nil
}

// decodeID accepts a bare id (number or numeric string) or an object
// carrying it under one of keys.
func decodeID(raw json.RawMessage, keys ...string) (int64, error) {
	raw = bytes.TrimSpace(raw)
	var id flexInt
	if len(raw) > 0 && raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, invalid("Identificador no válido.", err)
		}
		found := false
		for _, k := range append(keys, "id") {
			if v, ok := obj[k]; ok && !isNull(v) {
				raw, found = v, true
				break
			}
		}
		if !found {
			return 0, invalid("Falta el identificador.", nil)
		}
	}
	if err := json.Unmarshal(raw, &id); err != nil || id <= 0 {
		return 0, invalid("Identificador no válido.", err)
	}
	return int64(id), nil
}

// flexInt is an integer that also accepts a numeric string, as HTML form
// values arrive.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	*n = flexInt(v)
	return nil
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "true", "1":
		*f = true
	case "false", "0", "":
		*f = false
	default:
		return fmt.Errorf("not a boolean: %s", b)
	}
	return nil
}

// flexTime accepts RFC 3339, the HTML datetime-local and date formats and
// the SQL timestamp layout.  Values without a zone are taken as UTC.
type flexTime struct{ time.Time }

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	database.TimestampLayout,
	database.DateLayout,
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("not a date: %s", b)
	}
	s = strings.TrimSpace(s)
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}

// fields is the `datos` object of a partial update, keyed by column name.
type fields map[string]json.RawMessage

func (g *Gateway) decodeFields(raw json.RawMessage, allowed ...string) (fields, error) {
	var f fields
	if isNull(raw) {
		return fields{}, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, invalid("Datos no válidos.", err)
	}
	for k := range f {
		if !slices.Contains(allowed, k) {
			return nil, invalid(fmt.Sprintf("Campo %s no se puede actualizar.", k), nil)
		}
	}
	return f, nil
}

func (f fields) null(key string) bool {
	raw, ok := f[key]
	return ok && isNull(raw)
}

// field decodes key when present and not null.  The first decode error
// is kept in *errp and later calls become no-ops.
func field[T any](f fields, key string, errp *error) *T {
	raw, ok := f[key]
	if *errp != nil || !ok || isNull(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		*errp = invalid(fmt.Sprintf("Campo %s no válido.", key), err)
		return nil
	}
	return &v
}
