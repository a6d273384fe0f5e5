// Package descriptor models the provider and route metadata a media route
// provider service publishes, and parses it from untrusted bundles.
package descriptor

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Playback types.
const (
	PlaybackTypeLocal  = 0
	PlaybackTypeRemote = 1
)

// Volume handling modes.
const (
	VolumeHandlingFixed    = 0
	VolumeHandlingVariable = 1
)

// RouteDescriptor describes one route published by a provider.
type RouteDescriptor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"status,omitempty"`
	Enabled        bool   `json:"enabled"`
	Connecting     bool   `json:"connecting,omitempty"`
	PlaybackType   int    `json:"playbackType"`
	VolumeHandling int    `json:"volumeHandling"`
	Volume         int    `json:"volume"`
	VolumeMax      int    `json:"volumeMax"`
}

// UnmarshalJSON defaults Enabled to true when the field is absent.
func (r *RouteDescriptor) UnmarshalJSON(data []byte) error {
	type plain RouteDescriptor

	p := plain{Enabled: true, PlaybackType: PlaybackTypeRemote}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*r = RouteDescriptor(p)

	return nil
}

func (r *RouteDescriptor) String() string {
	return fmt.Sprintf("RouteDescriptor{id=%s, name=%s, enabled=%t, volume=%d/%d}",
		r.ID, r.Name, r.Enabled, r.Volume, r.VolumeMax)
}

// ProviderDescriptor is a snapshot of everything a provider publishes.
type ProviderDescriptor struct {
	Routes []*RouteDescriptor `json:"routes"`
}

// Route returns the route with the given id.
func (d *ProviderDescriptor) Route(id string) (*RouteDescriptor, bool) {
	if d == nil {
		return nil, false
	}

	for _, r := range d.Routes {
		if r.ID == id {
			return r, true
		}
	}

	return nil, false
}

func (d *ProviderDescriptor) String() string {
	if d == nil {
		return "ProviderDescriptor{}"
	}

	ids := make([]string, 0, len(d.Routes))
	for _, r := range d.Routes {
		ids = append(ids, r.ID)
	}

	return "ProviderDescriptor{routes=[" + strings.Join(ids, ", ") + "]}"
}

// ToBundle converts the descriptor to its wire form.
func (d *ProviderDescriptor) ToBundle() channel.Bundle {
	routes := make([]any, 0, len(d.Routes))

	for _, r := range d.Routes {
		rb := channel.Bundle{
			"id":             r.ID,
			"name":           r.Name,
			"enabled":        r.Enabled,
			"playbackType":   r.PlaybackType,
			"volumeHandling": r.VolumeHandling,
			"volume":         r.Volume,
			"volumeMax":      r.VolumeMax,
		}

		if r.Description != "" {
			rb["status"] = r.Description
		}

		if r.Connecting {
			rb["connecting"] = true
		}

		routes = append(routes, rb)
	}

	return channel.Bundle{"routes": routes}
}

// FromBundle parses a descriptor received from a service. A nil bundle
// yields an empty descriptor. Routes that fail validation are dropped and
// reported in a *errors.PayloadError alongside the routes that remain; the
// returned descriptor is never nil.
func FromBundle(b channel.Bundle) (*ProviderDescriptor, error) {
	d := &ProviderDescriptor{}
	if b == nil {
		return d, nil
	}

	data, err := json.Marshal(b)
	if err != nil {
		return d, &errors.PayloadError{Op: "descriptor", Err: err}
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return d, &errors.PayloadError{Op: "descriptor", Err: err}
	}

	schemas, err := resolvedSchemas()
	if err != nil {
		return d, fmt.Errorf("resolve descriptor schema: %w", err)
	}

	if err := schemas.provider.Validate(instance); err != nil {
		return d, &errors.PayloadError{Op: "descriptor", Err: err}
	}

	obj, _ := instance.(map[string]any)
	items, _ := obj["routes"].([]any)

	var (
		errs []error
		seen = make(map[string]struct{}, len(items))
	)

	for i, item := range items {
		r, err := parseRoute(schemas.route, item)
		if err != nil {
			errs = append(errs, fmt.Errorf("route %d: %w", i, err))

			continue
		}

		if _, dup := seen[r.ID]; dup {
			errs = append(errs, fmt.Errorf("route %d: duplicate route id %q", i, r.ID))

			continue
		}

		seen[r.ID] = struct{}{}
		d.Routes = append(d.Routes, r)
	}

	if len(errs) > 0 {
		return d, &errors.PayloadError{Op: "descriptor", Err: stderrors.Join(errs...)}
	}

	return d, nil
}

func parseRoute(schema *jsonschema.Resolved, item any) (*RouteDescriptor, error) {
	if err := schema.Validate(item); err != nil {
		return nil, err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}

	var r RouteDescriptor
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	if r.Volume > r.VolumeMax {
		return nil, fmt.Errorf("route %q volume %d exceeds max %d", r.ID, r.Volume, r.VolumeMax)
	}

	return &r, nil
}

type schemaSet struct {
	provider *jsonschema.Resolved
	route    *jsonschema.Resolved
}

var resolvedSchemas = sync.OnceValues(func() (schemaSet, error) {
	provider, err := providerSchema().Resolve(nil)
	if err != nil {
		return schemaSet{}, err
	}

	route, err := routeSchema().Resolve(nil)
	if err != nil {
		return schemaSet{}, err
	}

	return schemaSet{provider: provider, route: route}, nil
})

func routeSchema() *jsonschema.Schema {
	zero := 0.0
	one := 1.0
	minID := 1

	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "name"},
		Properties: map[string]*jsonschema.Schema{
			"id":             {Type: "string", MinLength: &minID},
			"name":           {Type: "string"},
			"status":         {Type: "string"},
			"enabled":        {Type: "boolean"},
			"connecting":     {Type: "boolean"},
			"playbackType":   {Type: "integer", Minimum: &zero, Maximum: &one},
			"volumeHandling": {Type: "integer", Minimum: &zero, Maximum: &one},
			"volume":         {Type: "integer", Minimum: &zero},
			"volumeMax":      {Type: "integer", Minimum: &zero},
		},
	}
}

// providerSchema checks the envelope only. Routes are validated one by one.
func providerSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"routes": {Type: "array"},
		},
	}
}
