package pipeline

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"tariff-tracker/internal/eventsapi"
)

//go:embed sample_events.json
var embeddedSample []byte

// Source names.
const (
	SourceAPI    = "api"
	SourceSample = "sample"
)

// Batch is the raw output of a Source: one payload per result page.
type Batch struct {
	Payloads [][]byte
	// Cached counts payloads served from the response cache.
	Cached int
	// Partial is set when later pages failed after earlier ones succeeded.
	Partial error
	// Fallback marks sample data standing in for the API.
	Fallback bool
}

// Source produces raw event payloads.
type Source interface {
	Name() string
	Load(ctx context.Context) (Batch, error)
}

// APISource loads events from the Events API.
type APISource struct {
	client *eventsapi.Client
	req    eventsapi.Request
}

// NewAPISource creates a source that runs req against client.
func NewAPISource(client *eventsapi.Client, req eventsapi.Request) *APISource {
	return &APISource{client: client, req: req}
}

// Name implements Source.
func (s *APISource) Name() string { return SourceAPI }

// Request returns the search request the source issues.
func (s *APISource) Request() eventsapi.Request { return s.req }

// Load implements Source. Auth, rate-limit and transport failures on the
// first page are returned as is.
func (s *APISource) Load(ctx context.Context) (Batch, error) {
	pages, err := s.client.Fetch(ctx, s.req)
	if len(pages) == 0 {
		if err == nil {
			err = fmt.Errorf("events api returned no pages")
		}
		return Batch{}, err
	}

	b := Batch{Payloads: make([][]byte, 0, len(pages)), Partial: err}
	for _, p := range pages {
		b.Payloads = append(b.Payloads, p.Raw)
		if p.Cached {
			b.Cached++
		}
	}
	return b, nil
}

// FileSource loads events from a JSON file, or from the built-in sample
// when no path is set.
type FileSource struct {
	path     string
	fallback bool
}

// NewFileSource creates a file source. An empty path selects the built-in
// sample.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// NewFallbackSource is a file source standing in for the API when no key
// is configured.
func NewFallbackSource(path string) *FileSource {
	return &FileSource{path: path, fallback: true}
}

// Name implements Source.
func (s *FileSource) Name() string {
	if s.path == "" {
		return SourceSample
	}
	return "file:" + s.path
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if s.path == "" {
		return Batch{Payloads: [][]byte{embeddedSample}, Fallback: s.fallback}, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Batch{}, fmt.Errorf("reading events file: %w", err)
	}
	return Batch{Payloads: [][]byte{data}, Fallback: s.fallback}, nil
}

// SampleData returns the built-in sample payload.
func SampleData() []byte {
	return embeddedSample
}
