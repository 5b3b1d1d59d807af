package publish

import (
	"errors"
	"html"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate = newValidator()
	strict   = bluemonday.StrictPolicy()
)

// rules mirrors Submission with the constraints the form enforces.
type rules struct {
	Title    string `form:"titulo" validate:"required,max=200"`
	Author   string `form:"autor" validate:"required,max=100"`
	Category string `form:"categoria" validate:"required,oneof=Futbol WWE Tenis Varios"`
	Body     string `form:"cuerpo" validate:"required,max=50000"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("form")
	})
	return v
}

// ValidationError lists the fields that block a submission, keyed by field,
// with a message suitable for showing next to the input.
type ValidationError struct {
	Fields map[Field]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[Field(k)])
	}
	return "publish: invalid form: " + strings.Join(parts, "; ")
}

// Validate checks f before anything is sent to the backend. requireImage
// makes the cover picture mandatory.
func (f Form) Validate(requireImage bool) error {
	s := f.Submission()
	r := rules{
		Title:    strings.TrimSpace(s.Title),
		Author:   strings.TrimSpace(s.Author),
		Category: string(s.Category),
		Body:     strings.TrimSpace(s.Body),
	}
	fields := make(map[Field]string)
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[Field(fe.Field())] = message(fe)
		}
	}
	switch {
	case f.image == nil || len(f.image.Data) == 0:
		if requireImage {
			fields[FieldImage] = "Seleccioná una imagen de portada."
		}
	case !strings.HasPrefix(http.DetectContentType(f.image.Data), "image/"):
		fields[FieldImage] = "El archivo no es una imagen."
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es obligatorio."
	case "max":
		return "Supera el largo máximo de " + fe.Param() + " caracteres."
	case "oneof":
		return "Sección desconocida."
	}
	return "Valor inválido."
}

// Sanitize strips any markup from user text and returns plain text.
func Sanitize(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}
