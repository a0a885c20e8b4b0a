// Package metrics defines the custom Prometheus metrics of the console
// backend. It is the single source of truth for metric names, labels,
// and help strings; promauto registers everything with the default
// registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "node_manager"

// LoginsTotal counts login attempts by outcome.
// Label:
//   - outcome: "success", "invalid_credentials", "pending_validation",
//     "throttled"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, labelled by outcome.",
	},
	[]string{"outcome"},
)

// GateDenialsTotal counts requests rejected by the role gate.
// Label:
//   - route: the echo route path that denied access
var GateDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_denials_total",
		Help:      "Total number of authorization denials, by route.",
	},
	[]string{"route"},
)

// DownstreamErrorsTotal counts failed calls to downstream services.
// Labels:
//   - service: "catalog" or "storage"
//   - kind: "unreachable" or "error"
var DownstreamErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downstream_errors_total",
		Help:      "Total number of failed downstream calls, by service and kind.",
	},
	[]string{"service", "kind"},
)
