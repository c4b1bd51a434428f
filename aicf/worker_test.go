package aicf

import (
	"context"
	"testing"
	"time"
)

type fakeDispatcher struct {
	result []byte
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, providerID string, job *Job) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestWorkerPoolDispatchesQueuedJobToActiveProvider(t *testing.T) {
	reg := NewRegistry(DefaultHeartbeatValidatorConfig())
	reg.Register("prov1", 1000)
	reg.Heartbeat(Heartbeat{ProviderID: "prov1", Timestamp: 1000, Nonce: 1}, 1000)

	q := NewQueue(10)
	id, _ := q.Submit(context.Background(), JobKindAI, []byte("s"), AttestationBundle{"a": "1"}, submitter, 1, time.Now().Unix()+3600)

	pool := NewWorkerPool(DefaultWorkerPoolConfig(), q, reg, &fakeDispatcher{result: []byte("ok")})
	if err := pool.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	j, err := q.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if j.Status != JobCompleted {
		t.Fatalf("status = %q, want completed", j.Status)
	}
}

func TestWorkerPoolSkipsWhenNoActiveProviders(t *testing.T) {
	reg := NewRegistry(DefaultHeartbeatValidatorConfig())
	q := NewQueue(10)
	q.Submit(context.Background(), JobKindAI, []byte("s"), AttestationBundle{"a": "1"}, submitter, 1, time.Now().Unix()+3600)

	pool := NewWorkerPool(DefaultWorkerPoolConfig(), q, reg, &fakeDispatcher{result: []byte("ok")})
	if err := pool.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	// job stays queued since no provider is active
	js := q.List()
	if len(js) != 1 || js[0].Status != JobQueued {
		t.Fatalf("expected job to remain queued")
	}
}
