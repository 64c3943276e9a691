package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors del servicio. Todos los métodos aceptan receptor nil
// para que los casos de uso funcionen sin métricas (tests, herramientas).
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OrderTransitions   *prometheus.CounterVec
	StockMovements     *prometheus.CounterVec
	StockRejections    *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
	NotificationTiming *prometheus.HistogramVec
	IdempotentReplays  *prometheus.CounterVec
}

// New registra los collectors bajo el namespace indicado en un registry propio.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "retail_ops"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total de peticiones HTTP",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "Duración de las peticiones HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_transitions_total",
			Help: "Transiciones de pedido por estado origen, destino y resultado",
		}, []string{"from", "to", "result"}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_movements_total",
			Help: "Movimientos agregados al ledger por tipo",
		}, []string{"type"}),
		StockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_rejections_total",
			Help: "Comandos de stock rechazados por motivo",
		}, []string{"reason"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Despachos al gateway de notificaciones",
		}, []string{"template", "result"}),
		NotificationTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "notification_duration_seconds",
			Help:    "Latencia del gateway de notificaciones",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"template"}),
		IdempotentReplays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "idempotent_replays_total",
			Help: "Comandos respondidos desde una clave de idempotencia completada",
		}, []string{"scope"}),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.OrderTransitions, m.StockMovements, m.StockRejections,
		m.NotificationsSent, m.NotificationTiming, m.IdempotentReplays,
	)
	return m
}

// Handler expone el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP registra una petición terminada.
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(from, to, result).Inc()
}

func (m *Metrics) IncMovement(movementType string) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(movementType).Inc()
}

func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.StockRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveNotification(template, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(template, result).Inc()
	m.NotificationTiming.WithLabelValues(template).Observe(d.Seconds())
}

func (m *Metrics) IncReplay(scope string) {
	if m == nil {
		return
	}
	m.IdempotentReplays.WithLabelValues(scope).Inc()
}
