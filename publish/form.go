package publish

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/quilpalta/alpalo/news"
)

// Field names one editable text field of the publish form. The values are
// the form input names.
type Field string

const (
	FieldTitle    Field = "titulo"
	FieldAuthor   Field = "autor"
	FieldCategory Field = "categoria"
	FieldBody     Field = "cuerpo"
	FieldImage    Field = "imagen"
)

// TextFields lists the fields Set accepts.
func TextFields() []Field {
	return []Field{FieldTitle, FieldAuthor, FieldCategory, FieldBody}
}

// Image is an uploaded cover picture.
type Image struct {
	Name        string
	Data        []byte
	ContentType string
}

// Form is the state of one publish form instance. It is a value: every
// setter returns a modified copy and leaves the receiver untouched.
type Form struct {
	id       string
	title    string
	author   string
	category news.Category
	body     string
	image    *Image
}

// NewForm returns an empty form with a fresh instance id and the default
// category.
func NewForm() Form {
	return Form{id: NewFormID(), category: news.DefaultCategory}
}

// NewFormID mints a form instance id.
func NewFormID() string {
	return uuid.NewString()
}

// ID identifies the form instance for the in-flight guard.
func (f Form) ID() string { return f.id }

func (f Form) Title() string { return f.title }

func (f Form) Author() string { return f.author }

func (f Form) Category() news.Category { return f.category }

func (f Form) Body() string { return f.body }

func (f Form) Image() *Image { return f.image }

// WithID returns f bound to an existing instance id.
func (f Form) WithID(id string) Form {
	f.id = id
	return f
}

// Set returns f with field set to value. Category values are normalised to
// their stored spelling when recognised and kept verbatim otherwise, so that
// validation can report them.
func (f Form) Set(field Field, value string) (Form, error) {
	switch field {
	case FieldTitle:
		f.title = value
	case FieldAuthor:
		f.author = value
	case FieldBody:
		f.body = value
	case FieldCategory:
		if c, ok := news.ParseCategory(value); ok {
			f.category = c
		} else {
			f.category = news.Category(value)
		}
	default:
		return f, fmt.Errorf("publish: unknown form field %q", field)
	}
	return f, nil
}

// WithImage returns f with img as the cover picture (nil clears it).
func (f Form) WithImage(img *Image) Form {
	f.image = img
	return f
}

// Reset returns the initial empty form under a new instance id.
func (f Form) Reset() Form {
	return NewForm()
}

// Submission converts the form to workflow input. Text is stripped of markup.
func (f Form) Submission() Submission {
	return Submission{
		Title:    Sanitize(f.title),
		Author:   Sanitize(f.author),
		Category: f.category,
		Body:     Sanitize(f.body),
		Image:    f.image,
	}
}
