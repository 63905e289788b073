package llm

import "fmt"

// ModelRoute binds a logical model name to a provider and physical model id.
type ModelRoute struct {
	Name        string
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Weight      float64
}

// Registry resolves logical model names to providers and routes.
type Registry struct {
	providers map[string]Provider
	models    map[string]ModelRoute
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]ModelRoute),
	}
}

// RegisterProvider adds a provider implementation.
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.providers[name] = p
}

// RegisterModel adds a model route.
func (r *Registry) RegisterModel(name string, route ModelRoute) {
	route.Name = name
	r.models[name] = route
}

// Resolve returns the provider and route for a given model name.
func (r *Registry) Resolve(modelName string) (Provider, ModelRoute, error) {
	route, ok := r.models[modelName]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("model %q not registered", modelName)
	}

	p, ok := r.providers[route.Provider]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("provider %q not registered for model %q", route.Provider, modelName)
	}

	return p, route, nil
}

// Models returns the registered model names in unspecified order.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}
