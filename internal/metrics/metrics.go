// Package metrics содержит Prometheus-метрики сервиса проката.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentalhub"

// Metrics объединяет коллекторы сервиса. Методы безопасно вызывать у nil.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ordersCreated     prometheus.Counter
	invoicesCreated   *prometheus.CounterVec
	paymentsConfirmed prometheus.Counter
	emails            *prometheus.CounterVec
	jobsAssigned      prometheus.Counter
}

// New создаёт отдельный реестр и регистрирует в нём коллекторы.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders accepted at checkout.",
		}),
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Invoices created by source.",
		}, []string{"source"}),
		paymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_confirmed_total",
			Help:      "Payment confirmations performed by admins.",
		}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_emails_total",
			Help:      "Invoice e-mail send attempts by result.",
		}, []string{"result"}),
		jobsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_assigned_total",
			Help:      "Worker job assignments.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.ordersCreated,
		m.invoicesCreated,
		m.paymentsConfirmed,
		m.emails,
		m.jobsAssigned,
	)

	return m
}

// Handler возвращает HTTP-обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest учитывает один обработанный HTTP-запрос.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// InvoiceCreated учитывает созданный счёт; source — "order" или "manual".
func (m *Metrics) InvoiceCreated(source string) {
	if m == nil {
		return
	}
	m.invoicesCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) PaymentConfirmed() {
	if m == nil {
		return
	}
	m.paymentsConfirmed.Inc()
}

// EmailSent учитывает попытку отправки письма со счётом.
func (m *Metrics) EmailSent(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.emails.WithLabelValues(result).Inc()
}

func (m *Metrics) JobAssigned() {
	if m == nil {
		return
	}
	m.jobsAssigned.Inc()
}
