// Package template renders the localized prompt fragments used to assemble
// RAG prompts. Locales are YAML files embedded at build time, one directory
// per language, one file per prompt group. A missing language or key falls
// back to the default language, so adding a partial translation never breaks
// prompt assembly.
package template

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var localesFS embed.FS

// DefaultLanguage is the fallback for languages with no locale directory.
const DefaultLanguage = "en"

// ErrTemplateNotFound is returned when neither the requested language nor
// the default language defines the group/key pair.
var ErrTemplateNotFound = errors.New("template not found")

// Catalog holds the parsed prompt templates of every embedded language.
type Catalog struct {
	language string
	// templates is keyed language -> "group.key".
	templates map[string]map[string]*texttemplate.Template
}

// New parses every embedded locale and pins the preferred language.
// Languages without a locale directory fall back to DefaultLanguage at
// render time, matching the behavior of an unknown key.
func New(language string) (*Catalog, error) {
	if language == "" {
		language = DefaultLanguage
	}

	c := &Catalog{
		language:  language,
		templates: make(map[string]map[string]*texttemplate.Template),
	}

	langs, err := fs.ReadDir(localesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}
	for _, lang := range langs {
		if !lang.IsDir() {
			continue
		}
		if err := c.loadLanguage(lang.Name()); err != nil {
			return nil, err
		}
	}

	if _, ok := c.templates[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %q has no embedded locale", DefaultLanguage)
	}
	return c, nil
}

func (c *Catalog) loadLanguage(lang string) error {
	files, err := fs.ReadDir(localesFS, path.Join("locales", lang))
	if err != nil {
		return fmt.Errorf("failed to read locale %s: %w", lang, err)
	}

	parsed := make(map[string]*texttemplate.Template)
	for _, f := range files {
		group := strings.TrimSuffix(f.Name(), ".yaml")
		if group == f.Name() {
			continue
		}

		data, err := localesFS.ReadFile(path.Join("locales", lang, f.Name()))
		if err != nil {
			return err
		}

		var entries map[string]string
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse locale %s/%s: %w", lang, f.Name(), err)
		}

		for key, body := range entries {
			name := group + "." + key
			tmpl, err := texttemplate.New(name).Parse(body)
			if err != nil {
				return fmt.Errorf("failed to parse template %s in locale %s: %w", name, lang, err)
			}
			parsed[name] = tmpl
		}
	}

	c.templates[lang] = parsed
	return nil
}

// Language returns the catalog's preferred language.
func (c *Catalog) Language() string {
	return c.language
}

// Render executes the template for group/key in the preferred language,
// falling back to the default language when the language or the key is
// missing.
func (c *Catalog) Render(group, key string, data any) (string, error) {
	name := group + "." + key

	tmpl, ok := c.templates[c.language][name]
	if !ok {
		tmpl, ok = c.templates[DefaultLanguage][name]
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return sb.String(), nil
}
