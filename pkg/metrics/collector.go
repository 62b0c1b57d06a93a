package metrics

import (
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/store"
)

// LeaderChecker reports current raft leadership, satisfied by
// *election.Elector without importing it directly (pkg/election
// already depends on pkg/log, avoid a cycle back through pkg/metrics).
type LeaderChecker interface {
	IsLeader() bool
}

// Collector periodically samples the repository and raft leadership
// state into the package's gauges, mirroring the teacher's
// pkg/metrics/collector.go polling approach but reading clusterd's
// store.Store instead of the teacher's manager.Manager.
type Collector struct {
	repo   store.Store
	leader LeaderChecker
	stopCh chan struct{}
}

// NewCollector builds a Collector over repo; leader may be nil if this
// process does not participate in leader election.
func NewCollector(repo store.Store, leader LeaderChecker) *Collector {
	return &Collector{repo: repo, leader: leader, stopCh: make(chan struct{})}
}

// Start begins periodic collection every 15s, matching the teacher's
// scrape-adjacent sampling interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectClusterMetrics()
	c.collectNodeMetrics()
	c.collectPolicyMetrics()
	c.collectReceiverMetrics()
	c.collectActionMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectClusterMetrics() {
	clusters, err := c.repo.ListClusters()
	if err != nil {
		return
	}
	counts := map[string]int{}
	for _, cl := range clusters {
		counts[string(cl.Status)]++
	}
	for status, n := range counts {
		ClustersTotal.WithLabelValues(status).Set(float64(n))
	}
}

func (c *Collector) collectNodeMetrics() {
	nodes, err := c.repo.ListNodes()
	if err != nil {
		return
	}
	counts := map[string]map[string]int{}
	for _, n := range nodes {
		role := string(n.Role)
		if counts[role] == nil {
			counts[role] = map[string]int{}
		}
		counts[role][string(n.Status)]++
	}
	for role, statuses := range counts {
		for status, n := range statuses {
			NodesTotal.WithLabelValues(role, status).Set(float64(n))
		}
	}
}

func (c *Collector) collectPolicyMetrics() {
	policies, err := c.repo.ListPolicies()
	if err != nil {
		return
	}
	PoliciesTotal.Set(float64(len(policies)))

	clusters, err := c.repo.ListClusters()
	if err != nil {
		return
	}
	enabled, disabled := 0, 0
	for _, cl := range clusters {
		bindings, err := c.repo.ListBindingsByCluster(cl.ID)
		if err != nil {
			continue
		}
		for _, b := range bindings {
			if b.Enabled {
				enabled++
			} else {
				disabled++
			}
		}
	}
	BindingsTotal.WithLabelValues("true").Set(float64(enabled))
	BindingsTotal.WithLabelValues("false").Set(float64(disabled))
}

func (c *Collector) collectReceiverMetrics() {
	receivers, err := c.repo.ListReceivers()
	if err != nil {
		return
	}
	ReceiversTotal.Set(float64(len(receivers)))
}

func (c *Collector) collectActionMetrics() {
	actions, err := c.repo.ListActions()
	if err != nil {
		return
	}
	counts := map[domain.ActionStatus]int{}
	for _, a := range actions {
		counts[a.Status]++
	}
	for status, n := range counts {
		ActionsTotal.WithLabelValues(string(status)).Set(float64(n))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.leader == nil {
		return
	}
	if c.leader.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
}
