package design

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrSchema marks a document that does not match the declared schema.
var ErrSchema = errors.New("schema violation")

// SchemaError describes one field that failed validation.
type SchemaError struct {
	Field string // json path, e.g. relationships[2].type
	Tag   string // failed rule
	Param string
	Value string
}

func (e *SchemaError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "oneof":
		return fmt.Sprintf("%s: %q is not one of [%s]", e.Field, e.Value, e.Param)
	case "unique":
		return fmt.Sprintf("%s: duplicate id %q", e.Field, e.Value)
	}
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s (value %q)", e.Field, e.Tag, e.Param, e.Value)
	}
	return fmt.Sprintf("%s failed %s (value %q)", e.Field, e.Tag, e.Value)
}

// ValidationErrors collects every schema violation found in a document.
type ValidationErrors []*SchemaError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "schema violation: " + strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrSchema) hold for any ValidationErrors.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrSchema
}

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	// Report json names so errors point at the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// Validate checks the document against its schema and verifies that
// actor, use case and class ids are unique across the whole document.
// The returned error, if any, is a ValidationErrors.
func (d *Document) Validate() error {
	var out ValidationErrors

	if err := structValidator().Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			out = append(out, &SchemaError{
				Field: trimNamespace(fe.Namespace()),
				Tag:   fe.Tag(),
				Param: fe.Param(),
				Value: fmt.Sprint(fe.Value()),
			})
		}
	}

	seen := make(map[string]bool)
	check := func(section string, i int, id string) {
		if id == "" {
			return
		}
		if seen[id] {
			out = append(out, &SchemaError{
				Field: fmt.Sprintf("%s[%d].id", section, i),
				Tag:   "unique",
				Value: id,
			})
		}
		seen[id] = true
	}
	for i, a := range d.Actors {
		check("actors", i, a.ID)
	}
	for i, u := range d.UseCases {
		check("useCases", i, u.ID)
	}
	for i, c := range d.Classes {
		check("classes", i, c.ID)
	}

	if len(out) > 0 {
		return out
	}
	return nil
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
