package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fake is an in-memory Driver used by unit tests and the reference CLI
// when no real cloud backend is configured. It implements every
// capability with a map-backed store and can be instructed to fail a
// given physical id's next operation, exercising §7's transient-error
// and rollback paths.
type Fake struct {
	mu       sync.Mutex
	servers  map[string]*ServerInfo
	members  map[string]string // memberID -> poolID
	failNext map[string]int    // physicalID/poolID -> remaining failures
}

// NewFake builds an empty Fake driver.
func NewFake() *Fake {
	return &Fake{
		servers:  make(map[string]*ServerInfo),
		members:  make(map[string]string),
		failNext: make(map[string]int),
	}
}

// FailNext makes the next n operations touching key return an error,
// letting tests exercise retry/rollback behavior deterministically.
func (f *Fake) FailNext(key string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[key] = n
}

func (f *Fake) consumeFailure(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext[key] > 0 {
		f.failNext[key]--
		return true
	}
	return false
}

func (f *Fake) Identity(Params) (Identity, error)           { return f, nil }
func (f *Fake) Compute(Params) (Compute, error)              { return f, nil }
func (f *Fake) Network(Params) (Network, error)               { return f, nil }
func (f *Fake) LoadBalancing(Params) (LoadBalancing, error)   { return f, nil }
func (f *Fake) Orchestration(Params) (Orchestration, error)    { return f, nil }

// --- Identity ---

func (f *Fake) TrustGetByTrustor(ctx context.Context, trustorID string) (string, error) {
	return "trust-" + trustorID, nil
}
func (f *Fake) TrustCreate(ctx context.Context, trustorID, trusteeID string, roles []string) (string, error) {
	return "trust-" + trustorID + "-" + trusteeID, nil
}
func (f *Fake) GetUserID(ctx context.Context) (string, error) { return "fake-user", nil }

// --- Compute ---

func (f *Fake) ServerCreate(ctx context.Context, spec ServerSpec) (string, error) {
	if f.consumeFailure(spec.Name) {
		return "", fmt.Errorf("fake: injected ServerCreate failure for %s", spec.Name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New().String()
	f.servers[id] = &ServerInfo{ID: id, Status: "ACTIVE", Addresses: map[string][]string{}, Metadata: spec.Metadata}
	return id, nil
}

func (f *Fake) ServerDelete(ctx context.Context, physicalID string) error {
	if f.consumeFailure(physicalID) {
		return fmt.Errorf("fake: injected ServerDelete failure for %s", physicalID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.servers, physicalID)
	return nil
}

func (f *Fake) ServerGet(ctx context.Context, physicalID string) (*ServerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[physicalID]
	if !ok {
		return nil, fmt.Errorf("fake: server %s not found", physicalID)
	}
	return s, nil
}

func (f *Fake) WaitForServerDelete(ctx context.Context, physicalID string, timeout time.Duration) error {
	f.mu.Lock()
	_, ok := f.servers[physicalID]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return fmt.Errorf("fake: server %s still present", physicalID)
}

func (f *Fake) ServerRebuild(ctx context.Context, physicalID, imageRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[physicalID]
	if !ok {
		return fmt.Errorf("fake: server %s not found", physicalID)
	}
	s.Metadata["image_ref"] = imageRef
	return nil
}

func (f *Fake) ServerInterfaceList(ctx context.Context, physicalID string) ([]string, error) {
	return nil, nil
}
func (f *Fake) ServerInterfaceCreate(ctx context.Context, physicalID, networkID string) (string, error) {
	return uuid.New().String(), nil
}
func (f *Fake) ServerInterfaceDelete(ctx context.Context, physicalID, interfaceID string) error {
	return nil
}

func (f *Fake) ServerMetadataGet(ctx context.Context, physicalID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[physicalID]
	if !ok {
		return nil, fmt.Errorf("fake: server %s not found", physicalID)
	}
	return s.Metadata, nil
}

func (f *Fake) ServerMetadataUpdate(ctx context.Context, physicalID string, md map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[physicalID]
	if !ok {
		return fmt.Errorf("fake: server %s not found", physicalID)
	}
	for k, v := range md {
		s.Metadata[k] = v
	}
	return nil
}

func (f *Fake) ImageFind(ctx context.Context, name string) (string, error)  { return "image-" + name, nil }
func (f *Fake) FlavorFind(ctx context.Context, name string) (string, error) { return "flavor-" + name, nil }

// --- Network ---

func (f *Fake) NetworkGet(ctx context.Context, id string) (string, error) { return id, nil }
func (f *Fake) SubnetGet(ctx context.Context, id string) (string, error)  { return id, nil }

func (f *Fake) PoolMemberCreate(ctx context.Context, poolID, address string, port int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New().String()
	f.members[id] = poolID
	return id, nil
}
func (f *Fake) PoolMemberDelete(ctx context.Context, poolID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, memberID)
	return nil
}
func (f *Fake) LoadBalancerCreate(ctx context.Context, vipSubnetID string) (string, error) {
	return uuid.New().String(), nil
}
func (f *Fake) LoadBalancerDelete(ctx context.Context, id string) error { return nil }
func (f *Fake) ListenerCreate(ctx context.Context, lbID string, port int, protocol string) (string, error) {
	return uuid.New().String(), nil
}
func (f *Fake) ListenerDelete(ctx context.Context, id string) error { return nil }
func (f *Fake) PoolCreate(ctx context.Context, listenerID, protocol string) (string, error) {
	return uuid.New().String(), nil
}
func (f *Fake) PoolDelete(ctx context.Context, id string) error { return nil }
func (f *Fake) HealthMonitorCreate(ctx context.Context, poolID string) (string, error) {
	return uuid.New().String(), nil
}
func (f *Fake) HealthMonitorDelete(ctx context.Context, id string) error { return nil }

// --- LoadBalancing ---

func (f *Fake) MemberAdd(ctx context.Context, nodeAddress, poolID string, port int) (string, error) {
	return f.PoolMemberCreate(ctx, poolID, nodeAddress, port)
}
func (f *Fake) MemberRemove(ctx context.Context, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, memberID)
	return nil
}

// --- Orchestration ---

func (f *Fake) StackCreate(ctx context.Context, name string, template map[string]any) (string, error) {
	return uuid.New().String(), nil
}
func (f *Fake) StackUpdate(ctx context.Context, id string, template map[string]any) error { return nil }
func (f *Fake) StackDelete(ctx context.Context, id string) error                          { return nil }
func (f *Fake) StackGet(ctx context.Context, id string) (string, error)                   { return "CREATE_COMPLETE", nil }
func (f *Fake) WaitForStack(ctx context.Context, id, target string, timeout time.Duration) error {
	return nil
}

var (
	_ Driver        = (*Fake)(nil)
	_ Identity      = (*Fake)(nil)
	_ Compute       = (*Fake)(nil)
	_ Network       = (*Fake)(nil)
	_ LoadBalancing = (*Fake)(nil)
	_ Orchestration = (*Fake)(nil)
)
