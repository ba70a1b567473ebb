// Package provider defines the contract every housing backend implements.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"student-rooms/internal/models"
)

var (
	// ErrUpstreamUnavailable covers network errors, timeouts and 5xx/429 answers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamShapeChanged means a response no longer has the expected structure.
	ErrUpstreamShapeChanged = errors.New("upstream shape changed")
	// ErrLocationNotFound is returned when the target country or city is unknown upstream.
	ErrLocationNotFound = errors.New("location not found")
	// ErrNotSupported is returned for operations a provider cannot perform for a location.
	ErrNotSupported = errors.New("not supported")
	// ErrUnknownProvider is returned by the registry for unregistered names.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrIncompleteOption is returned when an option lacks the references a
	// booking probe needs.
	ErrIncompleteOption = errors.New("option lacks booking metadata")
)

// Error kinds reported in scan results.
const (
	KindUnavailable  = "upstream_unavailable"
	KindShapeChanged = "upstream_shape_changed"
	KindNotFound     = "location_not_found"
	KindNotSupported = "not_supported"
	KindCancelled    = "cancelled"
	KindOther        = "error"
)

// Query scopes a listing request.
type Query struct {
	AcademicYear models.AcademicYear
	// AllYears disables academic-year scoping for diagnostics.
	AllYears bool
}

// Provider acquires room options from one upstream backend.
type Provider interface {
	Name() string
	Discover(ctx context.Context, loc models.Location) ([]models.PropertyRef, error)
	ListOptions(ctx context.Context, loc models.Location, q Query) ([]models.RoomOption, error)
}

// BookingProber is implemented by providers able to deep-probe the booking
// flow of a matched option.
type BookingProber interface {
	ProbeBooking(ctx context.Context, opt models.RoomOption) (models.BookingContext, error)
}

// Unavailable wraps err as ErrUpstreamUnavailable.
func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, fmt.Sprintf(format, args...))
}

// ShapeChanged wraps err as ErrUpstreamShapeChanged.
func ShapeChanged(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstreamShapeChanged, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is worth retrying within the same cycle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// Classify maps err to one of the Kind constants.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrUpstreamShapeChanged):
		return KindShapeChanged
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrLocationNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotSupported):
		return KindNotSupported
	default:
		return KindOther
	}
}

// ClassifyWithin classifies an error returned by a call made under
// parent. A deadline that fired while parent is still live is the
// provider's own timeout and counts as upstream unavailable.
func ClassifyWithin(parent context.Context, err error) string {
	kind := Classify(err)
	if kind == KindCancelled && parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return kind
}

// Registry holds the enabled providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the providers named in names, or all of them when names is empty.
func (r *Registry) Select(names ...string) ([]Provider, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Prober returns the booking prober for name, if that provider has one.
func (r *Registry) Prober(name string) (BookingProber, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	bp, ok := p.(BookingProber)
	if !ok {
		return nil, fmt.Errorf("%s booking probe: %w", name, ErrNotSupported)
	}
	return bp, nil
}
