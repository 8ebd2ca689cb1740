// Package picker binds a point (and, for Realms, a radius) form value to an
// optional parent containment circle.
//
// A Picker is a per-form object and is not safe for concurrent use.
package picker

import (
	"context"
	"errors"
	"math"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/geo"
)

const (
	DefaultMinRadius      = 5.0
	DefaultMaxRadius      = 1000.0
	DefaultOutsideMessage = "Selected point is outside the allowed area"
)

// ErrDisabled is returned by Pick when the picker is disabled.
var ErrDisabled = errors.New("picker is disabled")

// Value is the bound form value.
type Value struct {
	Point  *geo.Point `json:"point"`
	Radius float64    `json:"radius,omitempty"`
}

// Locator supplies the device position for "use current location".
type Locator interface {
	CurrentLocation(ctx context.Context, within geo.Predicate) (*geo.Point, error)
}

// Options configures a Picker.
type Options struct {
	Value          Value
	Parent         *geo.Circle
	Disabled       bool
	MinRadius      float64
	MaxRadius      float64
	Locator        Locator
	OutsideMessage string

	// OnChange fires after the bound value changes.
	OnChange func(Value)
	// OnFeedback receives user-facing rejection and failure messages.
	OnFeedback func(string)
	// OnCheck observes every containment check against the parent.
	OnCheck func(inside bool)
}

// Picker is an area-bounded point picker.
type Picker struct {
	opts     Options
	value    Value
	viewport *geo.Point
	feedback string
}

// New creates a Picker. Zero radius bounds fall back to 5-1000 m.
func New(opts Options) *Picker {
	if opts.MinRadius <= 0 {
		opts.MinRadius = DefaultMinRadius
	}
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = DefaultMaxRadius
	}
	if opts.MaxRadius < opts.MinRadius {
		opts.MaxRadius = opts.MinRadius
	}
	if opts.OutsideMessage == "" {
		opts.OutsideMessage = DefaultOutsideMessage
	}

	p := &Picker{opts: opts, value: opts.Value}
	if opts.Value.Point != nil {
		c := *opts.Value.Point
		p.viewport = &c
	} else if opts.Parent != nil {
		c := opts.Parent.Center
		p.viewport = &c
	}
	return p
}

// Value returns the bound value.
func (p *Picker) Value() Value {
	return p.value
}

// Viewport returns the point the map view should be centered on.
func (p *Picker) Viewport() *geo.Point {
	return p.viewport
}

// Feedback returns the last message surfaced to the user.
func (p *Picker) Feedback() string {
	return p.feedback
}

// SetDisabled toggles the disabled flag.
func (p *Picker) SetDisabled(disabled bool) {
	p.opts.Disabled = disabled
}

// Tap handles a map tap and reports whether the field was updated.
// Taps on a disabled picker are ignored silently.
func (p *Picker) Tap(pt geo.Point) bool {
	return p.Pick(pt) == nil
}

// Pick is Tap returning the reason for a rejection.
func (p *Picker) Pick(pt geo.Point) error {
	if p.opts.Disabled {
		return ErrDisabled
	}
	if err := pt.Validate(); err != nil {
		e := apperr.Wrap(apperr.KindValidation, "Invalid coordinates", err)
		p.notify(e.Message)
		return e
	}
	if !p.allowed(pt) {
		p.notify(p.opts.OutsideMessage)
		return apperr.OutOfBounds(p.opts.OutsideMessage)
	}

	p.setPoint(pt)
	return nil
}

// UseCurrentLocation asks the Locator for the device position, constrained to
// the parent circle, and binds it on success.
func (p *Picker) UseCurrentLocation(ctx context.Context) error {
	if p.opts.Disabled {
		return ErrDisabled
	}
	if p.opts.Locator == nil {
		return apperr.New(apperr.KindDeviceError, "Current location is not available")
	}

	pt, err := p.opts.Locator.CurrentLocation(ctx, p.allowed)
	if err != nil {
		p.notify(apperr.Message(err, "Unable to get your current location"))
		return err
	}
	if pt == nil {
		// another request already in flight
		return nil
	}

	p.setPoint(*pt)
	c := *pt
	p.viewport = &c
	return nil
}

// SetRadius clamps r to the configured bounds and binds it. The center is
// not re-validated.
func (p *Picker) SetRadius(r float64) float64 {
	if p.opts.Disabled {
		return p.value.Radius
	}
	if math.IsNaN(r) {
		r = p.opts.MinRadius
	}
	r = math.Max(p.opts.MinRadius, math.Min(p.opts.MaxRadius, r))

	p.value.Radius = r
	p.changed()
	return r
}

// RadiusBounds returns the configured radius range.
func (p *Picker) RadiusBounds() (min, max float64) {
	return p.opts.MinRadius, p.opts.MaxRadius
}

func (p *Picker) allowed(pt geo.Point) bool {
	if p.opts.Parent == nil {
		return true
	}
	inside := p.opts.Parent.Contains(pt)
	if p.opts.OnCheck != nil {
		p.opts.OnCheck(inside)
	}
	return inside
}

func (p *Picker) setPoint(pt geo.Point) {
	p.value.Point = &pt
	p.feedback = ""
	p.changed()
}

func (p *Picker) changed() {
	if p.opts.OnChange != nil {
		p.opts.OnChange(p.value)
	}
}

func (p *Picker) notify(msg string) {
	p.feedback = msg
	if p.opts.OnFeedback != nil {
		p.opts.OnFeedback(msg)
	}
}
