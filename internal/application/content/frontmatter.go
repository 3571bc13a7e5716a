package content

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/averagehelper/site/internal/domain/entities"
)

// DateLayout is the layout of the front matter date field.
const DateLayout = "2006-01-02"

// yamlFormat decodes --- delimited front matter with yaml.v3 so Date can
// see the raw node.
var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// Date is a calendar day written as 2006-01-02, quoted or not.
type Date struct {
	time.Time
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: date must be a scalar", node.Line)
	}

	for _, layout := range []string{DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, node.Value); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("line %d: invalid date %q, want %s", node.Line, node.Value, DateLayout)
}

// Meta is the front matter every Ways post must carry.
type Meta struct {
	Title       string `yaml:"title" validate:"required"`
	Description string `yaml:"description" validate:"required"`
	Date        Date   `yaml:"date" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if date, ok := field.Interface().(Date); ok {
			return date.Time
		}
		return nil
	}, Date{})
	return v
}

// ParseDocument splits a Markdown source into its validated front matter
// and body. Missing or incomplete front matter wraps
// entities.ErrMissingFrontMatter.
func ParseDocument(slug string, source []byte) (*entities.ContentDocument, error) {
	var meta Meta
	body, err := frontmatter.MustParse(bytes.NewReader(source), &meta, yamlFormat)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", slug, entities.ErrMissingFrontMatter)
		}
		return nil, fmt.Errorf("%s: %w: %v", slug, entities.ErrMissingFrontMatter, err)
	}

	if err := validate.Struct(&meta); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", slug, entities.ErrMissingFrontMatter, err)
	}

	return &entities.ContentDocument{
		Slug:        slug,
		Title:       meta.Title,
		Description: meta.Description,
		Date:        meta.Date.Time,
		Body:        string(body),
	}, nil
}
