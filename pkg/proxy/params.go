package proxy

import "net/url"

// Control parameters. They change local behavior and are never forwarded
// under their own names.
const (
	// ParamSince is the incremental-sync watermark.
	ParamSince = "since"

	// ParamLimit overrides the page size sent upstream.
	ParamLimit = "limit"

	// ParamSinceAtSource names the upstream parameter that receives the
	// value of ParamSince.
	ParamSinceAtSource = "ms_since_param_at_src"

	// ParamUpdatedProperty names the entity field copied into UpdatedField.
	ParamUpdatedProperty = "ms_updated_property"

	// ParamDataProperty names the envelope property holding the entities.
	ParamDataProperty = "ms_data_property"
)

// UpdatedField is the entity field written when ParamUpdatedProperty is set.
const UpdatedField = "_updated"

var controlParams = map[string]bool{
	ParamSince:           true,
	ParamLimit:           true,
	ParamSinceAtSource:   true,
	ParamUpdatedProperty: true,
	ParamDataProperty:    true,
}

// Params is an inbound query split into its two disjoint halves.
type Params struct {
	// Forward holds the pass-through parameters sent upstream.
	Forward url.Values

	// Keep holds the control parameters, first value per key.
	Keep map[string]string
}

// Classify splits query into pass-through and control parameters. Control
// keys move to Keep. When both ms_since_param_at_src and since are present,
// Forward gains a parameter named by ms_since_param_at_src carrying the
// since value; it replaces a pass-through parameter of the same name. All
// other keys are forwarded with every value. query is not modified.
func Classify(query url.Values) Params {
	p := Params{
		Forward: url.Values{},
		Keep:    map[string]string{},
	}

	for key, values := range query {
		if controlParams[key] {
			if len(values) > 0 {
				p.Keep[key] = values[0]
			} else {
				p.Keep[key] = ""
			}
			continue
		}
		p.Forward[key] = append([]string(nil), values...)
	}

	if name, ok := p.Keep[ParamSinceAtSource]; ok && name != "" {
		if since, ok := p.Keep[ParamSince]; ok {
			p.Forward.Set(name, since)
		}
	}

	return p
}

// Kept returns the control parameter key and whether it was supplied with a
// non-empty value.
func (p Params) Kept(key string) (string, bool) {
	v, ok := p.Keep[key]
	return v, ok && v != ""
}
