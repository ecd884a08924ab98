// Package messages renders user-facing text from a YAML catalog of keys.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yml
var defaultCatalog []byte

type catalogFile struct {
	Prefix   string            `yaml:"prefix"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog maps message keys to templates. Templates use {name}
// placeholders. Keys without a template render nothing.
type Catalog struct {
	prefix    string
	templates map[string]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded catalog invalid: %v", err))
	}
	return c
}

// Load reads the embedded catalog and overlays the file at path, if any.
// Keys set to an empty string in the override are disabled.
func Load(path string) (*Catalog, error) {
	base := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	override, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if override.prefix != "" {
		base.prefix = override.prefix
	}
	for k, v := range override.templates {
		base.templates[k] = v
	}
	return base, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	c := &Catalog{prefix: f.Prefix, templates: make(map[string]string, len(f.Messages))}
	for k, v := range f.Messages {
		c.templates[strings.TrimSpace(k)] = v
	}
	return c, nil
}

// Render fills the template for key. pairs alternate placeholder name and
// value; a trailing unpaired name is ignored. ok is false when the key is
// unknown or disabled.
func (c *Catalog) Render(key string, pairs ...string) (string, bool) {
	text, ok := c.Plain(key, pairs...)
	if !ok {
		return "", false
	}
	return c.prefix + text, true
}

// Plain is Render without the catalog prefix, for short cues such as the
// action bar.
func (c *Catalog) Plain(key string, pairs ...string) (string, bool) {
	if c == nil {
		return "", false
	}
	tmpl, ok := c.templates[key]
	if !ok || tmpl == "" {
		return "", false
	}
	if len(pairs) >= 2 {
		oldnew := make([]string, 0, len(pairs))
		for i := 0; i+1 < len(pairs); i += 2 {
			oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
		}
		tmpl = strings.NewReplacer(oldnew...).Replace(tmpl)
	}
	return tmpl, true
}

// Has reports whether key renders to something.
func (c *Catalog) Has(key string) bool {
	_, ok := c.Render(key)
	return ok
}
