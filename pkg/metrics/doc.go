/*
Package metrics provides Prometheus metrics collection and exposition
for clusterd, adapted from the teacher's pkg/metrics: the same
global-gauge/counter/histogram-at-init pattern, the same Timer helper,
and the same HealthChecker/liveness/readiness machinery, retargeted
from Warren's container-orchestration catalog to clusterd's
Cluster/Node/Action/Policy/Lock control plane.

# Metrics Catalog

Cluster/node inventory:

  - clusterd_clusters_total{status}
  - clusterd_nodes_total{role,status}
  - clusterd_policies_total
  - clusterd_policy_bindings_total{enabled}
  - clusterd_receivers_total

Action Store / Scheduler (C2/C3/C8):

  - clusterd_actions_total{status}
  - clusterd_actions_dispatched_total
  - clusterd_actions_retried_total
  - clusterd_actions_failed_total
  - clusterd_action_duration_seconds{action_name}

Lock Manager (C1):

  - clusterd_locks_held_total{scope}
  - clusterd_lock_steals_total

Policy Engine (C6):

  - clusterd_policy_evaluations_total{outcome}
  - clusterd_policy_evaluation_duration_seconds

Cluster/Node Action Runtime latency (C4/C5):

  - clusterd_cluster_create_duration_seconds
  - clusterd_cluster_scale_duration_seconds{action_name}
  - clusterd_node_create_duration_seconds
  - clusterd_node_delete_duration_seconds

Infrastructure Driver (§6):

  - clusterd_driver_calls_total{capability,outcome}
  - clusterd_driver_call_duration_seconds{capability}

Receiver (webhook triggers):

  - clusterd_receiver_notifications_total{outcome}

Raft/election:

  - clusterd_raft_is_leader

# Usage

	timer := metrics.NewTimer()
	// ... run CLUSTER_CREATE ...
	timer.ObserveDuration(metrics.ClusterCreateDuration)

	http.Handle("/metrics", metrics.Handler())

# Health and readiness

HealthChecker tracks named components (raft, store, scheduler, ...)
via RegisterComponent/UpdateComponent; GetHealth reports "healthy" iff
every registered component is healthy, GetReadiness additionally
requires raft/store/scheduler to be registered and healthy before
reporting "ready". HealthHandler/ReadyHandler/LivenessHandler expose
these as HTTP handlers for /health, /ready, and /live.
*/
package metrics
