// Package factory instantiates pluggable modules, such as metrics sinks and
// demand predictors, from configuration. A module is named by a type string
// and carries a map of raw settings that its factory decodes with Decode.
//
//	reg := factory.NewRegistry[prediction.Predictor]()
//	_ = reg.Register("jitter", func(conf map[string]any) (prediction.Predictor, error) {
//	    var c struct{ Spread float64 `json:"spread"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return &prediction.Jitter{Spread: c.Spread}, nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "jitter", Conf: map[string]any{"spread": "0.1"}})
package factory
