package event

import "strings"

// Registry holds the known variants in classification order
type Registry struct {
	variants        []Variant
	byID            map[string]Variant
	defaultPlatform string
}

// NewRegistry builds a registry. Events without a "for" field are treated as
// coming from defaultPlatform.
func NewRegistry(defaultPlatform string, variants ...Variant) *Registry {
	if defaultPlatform == "" {
		defaultPlatform = DefaultPlatformToken
	}
	r := &Registry{
		variants:        make([]Variant, 0, len(variants)),
		byID:            make(map[string]Variant, len(variants)),
		defaultPlatform: defaultPlatform,
	}
	for _, v := range variants {
		if _, exists := r.byID[v.ID()]; exists {
			continue
		}
		r.variants = append(r.variants, v)
		r.byID[v.ID()] = v
	}
	return r
}

// Classify returns the first variant matching the envelope's type and
// platform. A miss is not an error: the shared feed carries many event kinds.
func (r *Registry) Classify(env *Envelope) (Variant, bool) {
	platform := env.Platform
	if platform == "" {
		platform = r.defaultPlatform
	}
	for _, v := range r.variants {
		if strings.EqualFold(v.APIName(), env.Type) && v.Platform().Matches(platform) {
			return v, true
		}
	}
	return nil, false
}

func (r *Registry) Lookup(id string) (Variant, bool) {
	v, ok := r.byID[id]
	return v, ok
}

// Variants returns the registered variants in order
func (r *Registry) Variants() []Variant {
	out := make([]Variant, len(r.variants))
	copy(out, r.variants)
	return out
}
