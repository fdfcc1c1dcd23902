package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/relay"
	"github.com/hearthside/relay/pkg/webhook"
)

// opsServer is the operations HTTP listener: metrics, health probes,
// inbound webhooks, and the websocket stream when enabled
type opsServer struct {
	srv   *http.Server
	relay *relay.Relay
}

func newOpsServer(addr string, r *relay.Relay) *opsServer {
	mux := http.NewServeMux()
	o := &opsServer{relay: r}

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.HandleFunc("/webhooks/", o.handleInbound)

	if hub := r.Hub(); hub != nil {
		mux.HandleFunc("/ws", hub.HandleWS)
	}

	o.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return o
}

func (o *opsServer) start() error {
	err := o.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (o *opsServer) stop() {
	o.srv.Close()
}

// handleInbound accepts POST /webhooks/<id>. The event type is carried
// in the payload's event_type field; the X-Event-Type header overrides
// it. The signature comes from X-Signature or X-Hub-Signature-256.
func (o *opsServer) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/webhooks/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "missing webhook id", http.StatusNotFound)
		return
	}

	if reg, err := o.relay.Webhook(id); err == nil && !reg.AllowedFrom(remoteIP(r)) {
		metrics.IncWebhooksRejected()
		writeWebhookResult(w, webhook.Result{Reason: "source address not allowed"})
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Signature")
	if signature == "" {
		signature = r.Header.Get("X-Hub-Signature-256")
	}

	res := o.relay.ProcessWebhook(r.Context(), id, r.Header.Get("X-Event-Type"), payload, signature)
	writeWebhookResult(w, res)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeWebhookResult(w http.ResponseWriter, res webhook.Result) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case res.Processed:
		w.WriteHeader(http.StatusAccepted)
	case res.Verified:
		// Verified but the bus would not take it
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusForbidden)
	}
	json.NewEncoder(w).Encode(res)
}
