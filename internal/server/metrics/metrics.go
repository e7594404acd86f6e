// Package metrics exposes Prometheus collectors for the upload lifecycle
// and the provisioning reconciler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uploadvault"

// Confirmation results.
const (
	ResultUploaded        = "uploaded"
	ResultAlreadyTerminal = "already_terminal"
	ResultNotVisible      = "not_visible"
	ResultError           = "error"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	uploadIntents      prometheus.Counter
	confirmations      *prometheus.CounterVec
	provisionMutations *prometheus.CounterVec
	provisionRetries   *prometheus.CounterVec
	webhookRequests    *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration error. Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		uploadIntents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "upload_intents_total",
			Help:      "Presigned upload URLs issued.",
		}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "confirmations_total",
			Help:      "Upload confirmation attempts by result.",
		}, []string{"result"}),
		provisionMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "mutations_total",
			Help:      "Mutating control-plane calls issued by the reconciler.",
		}, []string{"resource", "action"}),
		provisionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "retries_total",
			Help:      "Reconciler retries caused by conflicts or propagation delays.",
		}, []string{"operation"}),
		webhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Webhook ingress requests by response code.",
		}, []string{"code"}),
	}
	reg.MustRegister(m.uploadIntents, m.confirmations, m.provisionMutations, m.provisionRetries, m.webhookRequests)
	return m
}

func (m *Metrics) UploadIntent() {
	if m == nil {
		return
	}
	m.uploadIntents.Inc()
}

func (m *Metrics) Confirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

func (m *Metrics) ProvisionMutation(resource, action string) {
	if m == nil {
		return
	}
	m.provisionMutations.WithLabelValues(resource, action).Inc()
}

func (m *Metrics) ProvisionRetry(operation string) {
	if m == nil {
		return
	}
	m.provisionRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) WebhookRequest(code string) {
	if m == nil {
		return
	}
	m.webhookRequests.WithLabelValues(code).Inc()
}
