// Package harvest pages through a job-listing site with a browser backend,
// extracts one posting per result card, and saves the run's postings to the
// posting store in a single deduplicating write.
package harvest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultNavTimeout bounds a single page navigation.
	DefaultNavTimeout = 60 * time.Second
	// DefaultWaitTimeout bounds the wait for the first result container.
	DefaultWaitTimeout = 15 * time.Second
	// DefaultLinkAttr is the attribute the detail link is read from.
	DefaultLinkAttr = "href"
)

// PageMode selects how the page parameter is computed.
type PageMode string

const (
	// PageModeOffset sets the parameter to pageIndex*PerPage.
	PageModeOffset PageMode = "offset"
	// PageModeIndex sets the parameter to FirstPage+pageIndex.
	PageModeIndex PageMode = "index"
)

// Duration is a time.Duration that reads from strings like "3s" in both
// YAML and JSON source files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Pagination describes how a listing URL encodes the page.
type Pagination struct {
	Mode         PageMode `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=offset index"`
	Param        string   `json:"param" yaml:"param" validate:"required"`
	FirstPage    int      `json:"first_page,omitempty" yaml:"first_page,omitempty" validate:"min=0"`
	PerPageParam string   `json:"per_page_param,omitempty" yaml:"per_page_param,omitempty"`
}

// Selectors maps logical posting fields to CSS selectors, evaluated
// relative to each result container.
type Selectors struct {
	Container   string `json:"container" yaml:"container" validate:"required"`
	Title       string `json:"title" yaml:"title" validate:"required"`
	// Company is for boards listing several employers; Source.Company is
	// used when it is unset or matches nothing.
	Company     string `json:"company,omitempty" yaml:"company,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Link        string `json:"link" yaml:"link" validate:"required"`
	LinkAttr    string `json:"link_attr,omitempty" yaml:"link_attr,omitempty"`
}

// Source configures one job site.
type Source struct {
	Name              string            `json:"name" yaml:"name" validate:"required"`
	Label             string            `json:"label,omitempty" yaml:"label,omitempty"`
	Company           string            `json:"company,omitempty" yaml:"company,omitempty"`
	BaseURL           string            `json:"base_url" yaml:"base_url" validate:"required,http_url"`
	SiteURL           string            `json:"site_url,omitempty" yaml:"site_url,omitempty" validate:"omitempty,http_url"`
	Params            map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Pagination        Pagination        `json:"pagination" yaml:"pagination"`
	Selectors         Selectors         `json:"selectors" yaml:"selectors"`
	LocationDelimiter string            `json:"location_delimiter,omitempty" yaml:"location_delimiter,omitempty"`
	PerPage           int               `json:"per_page" yaml:"per_page" validate:"required,min=1"`
	MaxPages          int               `json:"max_pages" yaml:"max_pages" validate:"required,min=1"`
	PageDelay         Duration          `json:"page_delay,omitempty" yaml:"page_delay,omitempty" validate:"min=0"`
	NavTimeout        Duration          `json:"nav_timeout,omitempty" yaml:"nav_timeout,omitempty" validate:"min=0"`
	WaitTimeout       Duration          `json:"wait_timeout,omitempty" yaml:"wait_timeout,omitempty" validate:"min=0"`
	UserAgent         string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

var sourceValidator = validator.New()

// Validate checks required fields and ranges.
func (s *Source) Validate() error {
	if err := sourceValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid source %q: %w", s.Name, err)
	}
	return nil
}

// WithDefaults returns a copy with unset optional fields filled in.
func (s Source) WithDefaults() Source {
	if s.Label == "" {
		s.Label = s.Name
	}
	if s.Pagination.Mode == "" {
		s.Pagination.Mode = PageModeOffset
	}
	if s.Pagination.Mode == PageModeIndex && s.Pagination.FirstPage == 0 {
		s.Pagination.FirstPage = 1
	}
	if s.Selectors.LinkAttr == "" {
		s.Selectors.LinkAttr = DefaultLinkAttr
	}
	if s.NavTimeout == 0 {
		s.NavTimeout = Duration(DefaultNavTimeout)
	}
	if s.WaitTimeout == 0 {
		s.WaitTimeout = Duration(DefaultWaitTimeout)
	}
	if s.SiteURL == "" {
		if u, err := url.Parse(s.BaseURL); err == nil && u.Host != "" {
			s.SiteURL = u.Scheme + "://" + u.Host
		}
	}
	return s
}

// PageURL returns the listing URL for the zero-based page index.
func (s *Source) PageURL(index int) (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", s.BaseURL, err)
	}

	q := u.Query()
	for k, v := range s.Params {
		q.Set(k, v)
	}
	if s.Pagination.PerPageParam != "" {
		q.Set(s.Pagination.PerPageParam, strconv.Itoa(s.PerPage))
	}

	var value int
	switch s.Pagination.Mode {
	case PageModeIndex:
		value = s.Pagination.FirstPage + index
	default:
		value = index * s.PerPage
	}
	q.Set(s.Pagination.Param, strconv.Itoa(value))

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sourcesFile is the on-disk layout of a sources file.
type sourcesFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// LoadSources reads source definitions from a YAML (.yaml/.yml) or JSON file.
// Every source is defaulted and validated.
func LoadSources(path string) ([]Source, error) {
	if path == "" {
		return nil, fmt.Errorf("sources path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var file sourcesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse sources YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse sources JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sources file extension %q", filepath.Ext(path))
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}

	seen := make(map[string]bool, len(file.Sources))
	sources := make([]Source, 0, len(file.Sources))
	for _, src := range file.Sources {
		src = src.WithDefaults()
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		sources = append(sources, src)
	}
	return sources, nil
}
