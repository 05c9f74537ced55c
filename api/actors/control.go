package actors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/core/registry"
)

// Sender is the address external control requests are sent from.
var Sender = model.NewRef("api")

// NewControlHandler returns a handler injecting external events into
// consumers:
//
//	POST /api/consumers/{name}/charging  {"extra": 2.5}
//	POST /api/consumers/{name}/provider  {"provider": "P2"}
//
// Requests must carry "Authorization: Bearer <token>" when token is set.
func NewControlHandler(b bus.Bus, reg registry.Registry, token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/consumers/{name}/charging", func(w http.ResponseWriter, r *http.Request) {
		var p message.ConsumerCharging
		inject(w, r, b, reg, message.TopicConsumerCharging, &p)
	})
	mux.HandleFunc("POST /api/consumers/{name}/provider", func(w http.ResponseWriter, r *http.Request) {
		var p message.UpdateProvider
		inject(w, r, b, reg, message.TopicUpdateProvider, &p)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func inject[P message.Payload](w http.ResponseWriter, r *http.Request, b bus.Bus, reg registry.Registry, topic message.Topic, p *P) {
	ref, err := registry.First(reg, model.ServiceConsumer, r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := (*p).Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg := message.New(Sender, topic, *p, ref)
	if err := b.Send(r.Context(), msg); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, bus.ErrUnknownReceiver) {
			code = http.StatusNotFound
		}
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": msg.ID})
}
