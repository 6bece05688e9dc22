package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instruments holds the Prometheus counters of the front desk. A nil
// *Instruments records nothing.
type Instruments struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	pickups       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	mirrorReads   prometheus.Counter
	hostMemory    *prometheus.GaugeVec
	hostDisk      *prometheus.GaugeVec
	hostCPU       prometheus.Gauge
}

// NewInstruments registers the counters on reg. A nil reg builds unregistered
// counters, which tests use.
func NewInstruments(reg prometheus.Registerer) *Instruments {
	factory := promauto.With(reg)
	return &Instruments{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "deliveries_registered_total",
			Help:      "Delivery registrations by result.",
		}, []string{"result"}),
		pickups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "pickups_total",
			Help:      "Pickup confirmations by result.",
		}, []string{"result"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "notifications_total",
			Help:      "Notification dispatches by kind and result.",
		}, []string{"kind", "result"}),
		mirrorReads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "mirror_fallback_reads_total",
			Help:      "Lookups answered from the device mirror instead of the database.",
		}),
		hostMemory: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Name:      "host_memory_bytes",
			Help:      "Process RSS and system memory, sampled periodically.",
		}, []string{"kind"}),
		hostDisk: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Name:      "media_disk_bytes",
			Help:      "Total and free bytes on the media volume.",
		}, []string{"kind"}),
		hostCPU: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Name:      "host_cpu_load_ratio",
			Help:      "System CPU load between 0 and 1.",
		}),
	}
}

func (i *Instruments) LoginAttempt(result string) {
	if i == nil {
		return
	}
	i.logins.WithLabelValues(result).Inc()
}

func (i *Instruments) Registration(result string) {
	if i == nil {
		return
	}
	i.registrations.WithLabelValues(result).Inc()
}

func (i *Instruments) Pickup(result string) {
	if i == nil {
		return
	}
	i.pickups.WithLabelValues(result).Inc()
}

func (i *Instruments) Notification(kind string, ok bool) {
	if i == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	i.notifications.WithLabelValues(kind, result).Inc()
}

func (i *Instruments) MirrorFallback() {
	if i == nil {
		return
	}
	i.mirrorReads.Inc()
}

func (i *Instruments) ObserveHost(sample HostSample) {
	if i == nil {
		return
	}
	i.hostMemory.WithLabelValues("process_rss").Set(float64(sample.ProcessRSSBytes))
	i.hostMemory.WithLabelValues("system_total").Set(float64(sample.SystemMemoryTotal))
	i.hostMemory.WithLabelValues("system_used").Set(float64(sample.SystemMemoryUsed))
	i.hostDisk.WithLabelValues("total").Set(float64(sample.DiskTotalBytes))
	i.hostDisk.WithLabelValues("free").Set(float64(sample.DiskFreeBytes))
	i.hostCPU.Set(sample.SystemCpuLoad)
}
