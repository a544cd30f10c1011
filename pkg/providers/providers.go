package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package providers contains the logo source registry and the single-source fetcher.

// DomainPlaceholder is substituted with the looked-up domain in URL templates.
const DomainPlaceholder = "{domain}"

// ResponseKind tells the fetcher how to unwrap a provider response.
type ResponseKind string

const (
	// ResponseDirectImage means the body is the image itself.
	ResponseDirectImage ResponseKind = "direct_image"
	// ResponseJSONField means the body is a JSON envelope holding an image URL at Path.
	ResponseJSONField ResponseKind = "json_field"
)

// ResponseFormat describes a provider's response shape. Path elements are
// object keys (string) or array indexes (int).
type ResponseFormat struct {
	Kind ResponseKind `json:"kind" yaml:"kind"`
	Path []any        `json:"path" yaml:"path"`
}

// Provider is a logo lookup service addressed by a URL template.
type Provider struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	URLTemplate string         `json:"url_template" yaml:"url_template"`
	Primary     bool           `json:"primary" yaml:"primary"`
	Response    ResponseFormat `json:"response" yaml:"response"`
	Config      map[string]any `json:"config" yaml:"config"`
}

// URLFor substitutes domainName into the provider's template.
func (p Provider) URLFor(domainName string) string {
	return strings.ReplaceAll(p.URLTemplate, DomainPlaceholder, domainName)
}

type registryFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// Registry is an immutable, ordered provider table.
type Registry struct {
	providers []Provider
	idx       map[string]Provider
	primary   string
}

// builtinProviders is the default registry, in lookup order.
var builtinProviders = []Provider{
	{
		ID:          "clearbit",
		Name:        "Clearbit",
		URLTemplate: "https://logo.clearbit.com/{domain}",
		Primary:     true,
		Response:    ResponseFormat{Kind: ResponseDirectImage},
	},
	{
		ID:          "google",
		Name:        "Google Favicon",
		URLTemplate: "https://www.google.com/s2/favicons?domain={domain}&sz=256",
		Response:    ResponseFormat{Kind: ResponseDirectImage},
	},
	{
		ID:          "duckduckgo",
		Name:        "DuckDuckGo",
		URLTemplate: "https://icons.duckduckgo.com/ip3/{domain}.ico",
		Response:    ResponseFormat{Kind: ResponseDirectImage},
	},
	{
		ID:          "favicongrabber",
		Name:        "Favicon Grabber",
		URLTemplate: "https://favicongrabber.com/api/grab/{domain}",
		Response:    ResponseFormat{Kind: ResponseJSONField, Path: []any{"icons", 0, "src"}},
	},
	{
		ID:          "besticon",
		Name:        "Besticon",
		URLTemplate: "https://besticon-demo.herokuapp.com/allicons.json?url={domain}",
		Response:    ResponseFormat{Kind: ResponseJSONField, Path: []any{"icons", 0, "url"}},
	},
}

// DefaultRegistry returns the built-in provider table.
func DefaultRegistry() *Registry {
	cp := make([]Provider, len(builtinProviders))
	for i, p := range builtinProviders {
		p.Response.Path = append([]any(nil), p.Response.Path...)
		cp[i] = p
	}
	reg, err := NewRegistry(cp)
	if err != nil {
		panic(fmt.Sprintf("builtin providers invalid: %v", err))
	}
	return reg
}

// NewRegistry validates list and builds a registry preserving its order.
func NewRegistry(list []Provider) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("registry contains no providers")
	}

	reg := &Registry{
		providers: make([]Provider, len(list)),
		idx:       make(map[string]Provider, len(list)),
	}
	// names label results, so they must be unique too
	names := make(map[string]string, len(list))
	for i := range list {
		p := sanitizeProvider(list[i])
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("provider[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		if other, exists := names[strings.ToLower(p.Name)]; exists {
			return nil, fmt.Errorf("provider %q: name %q already used by %q", p.ID, p.Name, other)
		}
		names[strings.ToLower(p.Name)] = p.ID
		if p.Primary {
			if reg.primary != "" {
				return nil, fmt.Errorf("provider %q: primary already set to %q", p.ID, reg.primary)
			}
			reg.primary = p.ID
		}
		reg.providers[i] = p
		reg.idx[p.ID] = p
	}
	if reg.primary == "" {
		reg.primary = reg.providers[0].ID
	}
	return reg, nil
}

// LoadRegistry loads a provider registry from file; an empty path yields the built-in table.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Providers) == 0 {
		return nil, errors.New("providers file contains no providers entries")
	}
	return NewRegistry(parsed.Providers)
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("providers file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s providers: %w", name, err)
	}
	return reg, nil
}

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	p.Name = strings.TrimSpace(p.Name)
	p.URLTemplate = strings.TrimSpace(p.URLTemplate)
	p.Response.Kind = ResponseKind(strings.ToLower(strings.TrimSpace(string(p.Response.Kind))))
	if p.Response.Kind == "" {
		p.Response.Kind = ResponseDirectImage
	}
	p.Response.Path = normalizePath(p.Response.Path)

	if p.Config == nil {
		p.Config = map[string]any{}
	}
	return p
}

// normalizePath coerces decoded path segments to string keys or int indexes.
// JSON numbers arrive as float64 and YAML may quote indexes.
func normalizePath(path []any) []any {
	if len(path) == 0 {
		return nil
	}
	out := make([]any, 0, len(path))
	for _, seg := range path {
		switch v := seg.(type) {
		case int:
			out = append(out, v)
		case int64:
			out = append(out, int(v))
		case float64:
			out = append(out, int(v))
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				out = append(out, n)
			} else {
				out = append(out, v)
			}
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for provider %q", p.ID)
	}
	if !strings.Contains(p.URLTemplate, DomainPlaceholder) {
		return fmt.Errorf("url_template for provider %q must contain %s", p.ID, DomainPlaceholder)
	}
	switch p.Response.Kind {
	case ResponseDirectImage:
	case ResponseJSONField:
		if len(p.Response.Path) == 0 {
			return fmt.Errorf("response.path is required for json_field provider %q", p.ID)
		}
	default:
		return fmt.Errorf("unsupported response kind %q for provider %q", p.Response.Kind, p.ID)
	}
	return nil
}

// All returns the providers in registry order.
func (r *Registry) All() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ByID returns the provider entry for the given id.
func (r *Registry) ByID(id string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	p, ok := r.idx[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// Primary returns the provider attempted first.
func (r *Registry) Primary() Provider {
	p, _ := r.ByID(r.primary)
	return p
}

// Resolve maps a provider id and domain to the lookup URL.
func (r *Registry) Resolve(id, domainName string) (string, bool) {
	p, ok := r.ByID(id)
	if !ok {
		return "", false
	}
	return p.URLFor(domainName), true
}
