// Package prediction provides the forecasting policies used by buildings for
// production and by consumers for demand. Every policy starts from the
// configured baseline. Policies are created from configuration through the
// factory registry:
//
//	p, err := prediction.New(factory.ModuleConfig{Type: "jitter", Conf: map[string]any{"spread": 0.05}}, rng)
package prediction
