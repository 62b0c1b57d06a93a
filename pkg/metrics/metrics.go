package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster/node metrics
	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_clusters_total",
			Help: "Total number of clusters by status",
		},
		[]string{"status"},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_nodes_total",
			Help: "Total number of nodes by role and status",
		},
		[]string{"role", "status"},
	)

	PoliciesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterd_policies_total",
			Help: "Total number of policy definitions",
		},
	)

	BindingsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_policy_bindings_total",
			Help: "Total number of cluster/policy bindings by enabled state",
		},
		[]string{"enabled"},
	)

	ReceiversTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterd_receivers_total",
			Help: "Total number of registered receivers",
		},
	)

	// Action Store / Scheduler metrics
	ActionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_actions_total",
			Help: "Total number of actions by status",
		},
		[]string{"status"},
	)

	ActionsDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clusterd_actions_dispatched_total",
			Help: "Total number of actions dispatched to a worker",
		},
	)

	ActionsRetriedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clusterd_actions_retried_total",
			Help: "Total number of actions that yielded RES_RETRY",
		},
	)

	ActionsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clusterd_actions_failed_total",
			Help: "Total number of actions that terminated FAILED",
		},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterd_action_duration_seconds",
			Help:    "Time from an action's first RUNNING dispatch to its terminal state",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action_name"},
	)

	// Raft/election metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterd_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	// Lock Manager metrics
	LocksHeldTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterd_locks_held_total",
			Help: "Total number of locks currently held by scope",
		},
		[]string{"scope"},
	)

	LockStealsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clusterd_lock_steals_total",
			Help: "Total number of forced lock steals on CLUSTER scope",
		},
	)

	// Policy Engine metrics
	PolicyEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterd_policy_evaluations_total",
			Help: "Total number of policy evaluations by outcome",
		},
		[]string{"outcome"},
	)

	PolicyEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterd_policy_evaluation_duration_seconds",
			Help:    "Time taken to evaluate the policy checkpoints for one action",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cluster/node operation latency
	ClusterCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterd_cluster_create_duration_seconds",
			Help:    "Time taken to run CLUSTER_CREATE to completion",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClusterScaleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterd_cluster_scale_duration_seconds",
			Help:    "Time taken to run a scaling action to completion",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action_name"},
	)

	NodeCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterd_node_create_duration_seconds",
			Help:    "Time taken to run NODE_CREATE to completion",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodeDeleteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterd_node_delete_duration_seconds",
			Help:    "Time taken to run NODE_DELETE to completion",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Infrastructure Driver metrics
	DriverCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterd_driver_calls_total",
			Help: "Total number of Infrastructure Driver calls by capability and outcome",
		},
		[]string{"capability", "outcome"},
	)

	DriverCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterd_driver_call_duration_seconds",
			Help:    "Infrastructure Driver call duration by capability",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"capability"},
	)

	// Receiver metrics
	ReceiverNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterd_receiver_notifications_total",
			Help: "Total number of receiver Notify calls by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(PoliciesTotal)
	prometheus.MustRegister(BindingsTotal)
	prometheus.MustRegister(ReceiversTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionsDispatchedTotal)
	prometheus.MustRegister(ActionsRetriedTotal)
	prometheus.MustRegister(ActionsFailedTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(LocksHeldTotal)
	prometheus.MustRegister(LockStealsTotal)
	prometheus.MustRegister(PolicyEvaluationsTotal)
	prometheus.MustRegister(PolicyEvaluationDuration)
	prometheus.MustRegister(ClusterCreateDuration)
	prometheus.MustRegister(ClusterScaleDuration)
	prometheus.MustRegister(NodeCreateDuration)
	prometheus.MustRegister(NodeDeleteDuration)
	prometheus.MustRegister(DriverCallsTotal)
	prometheus.MustRegister(DriverCallDuration)
	prometheus.MustRegister(ReceiverNotificationsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
