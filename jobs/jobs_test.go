package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/souq/internal/approval"
	jobmetrics "github.com/odyssey-erp/souq/internal/jobs"
	"github.com/odyssey-erp/souq/internal/onboarding"
	"github.com/odyssey-erp/souq/internal/rbac"
)

type capturedTask struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeQueue struct {
	tasks []capturedTask
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, capturedTask{task: task, opts: opts})
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

type fakeWallets struct {
	ledger   map[int64]int64
	balances map[int64]int64
	err      error
}

func (w fakeWallets) LedgerAmount(_ context.Context, orderID int64) (int64, bool, error) {
	if w.err != nil {
		return 0, false, w.err
	}
	amount, ok := w.ledger[orderID]
	return amount, ok, nil
}

func (w fakeWallets) Balance(_ context.Context, vendorID int64) (int64, error) {
	return w.balances[vendorID], w.err
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (i fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return i.info, i.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleCredit() approval.WalletCredit {
	return approval.WalletCredit{
		ID:         uuid.MustParse("7f1d8c2e-2b6c-4c3f-9f7a-1a2b3c4d5e6f"),
		VendorID:   20,
		OrderID:    500,
		Gross:      10000,
		Commission: 1250,
		Amount:     8750,
		CreatedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func optionTypes(opts []asynq.Option) map[asynq.OptionType]any {
	out := make(map[asynq.OptionType]any, len(opts))
	for _, o := range opts {
		out[o.Type()] = o.Value()
	}
	return out
}

func TestNotifierEnqueuesOnboardingDecision(t *testing.T) {
	queue := &fakeQueue{}
	n := NewNotifier(queue)

	ev := onboarding.DecisionEvent{Kind: rbac.KindVendor, ActorID: 10, Status: onboarding.StatusRejected, Reason: "expired license", DecidedBy: 1}
	require.NoError(t, n.OnboardingDecided(context.Background(), ev))

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, TaskOnboardingDecided, queue.tasks[0].task.Type())
	var got onboarding.DecisionEvent
	require.NoError(t, json.Unmarshal(queue.tasks[0].task.Payload(), &got))
	assert.Equal(t, ev, got)
	assert.Equal(t, QueueDefault, optionTypes(queue.tasks[0].opts)[asynq.QueueOpt])
}

func TestNotifierKeysWalletCreditByLedgerID(t *testing.T) {
	queue := &fakeQueue{}
	n := NewNotifier(queue)
	credit := sampleCredit()

	require.NoError(t, n.WalletCredited(context.Background(), credit))
	require.Len(t, queue.tasks, 1)
	opts := optionTypes(queue.tasks[0].opts)
	assert.Equal(t, "wallet-credit:"+credit.ID.String(), opts[asynq.TaskIDOpt])

	queue.err = errors.New("redis unavailable")
	err := n.WalletCredited(context.Background(), credit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskWalletCredited)

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.WalletCredited(context.Background(), credit))
}

func TestOnboardingDecidedJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewOnboardingDecidedJob(discardLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewOnboardingDecidedTask(onboarding.DecisionEvent{Kind: rbac.KindCustomer, ActorID: 30, Status: onboarding.StatusApprovedGeneral, DecidedBy: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskOnboardingDecided, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskOnboardingDecided, []byte(`{"actor_id":0,"status":"rejected"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWalletCreditedJob(t *testing.T) {
	credit := sampleCredit()
	task, err := NewWalletCreditedTask(credit)
	require.NoError(t, err)

	t.Run("matches ledger", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics := jobmetrics.NewMetrics(reg)
		job := NewWalletCreditedJob(fakeWallets{
			ledger:   map[int64]int64{500: 8750},
			balances: map[int64]int64{20: 12000},
		}, discardLogger(), metrics)

		require.NoError(t, job.Handle(context.Background(), task))
		families, err := reg.Gather()
		require.NoError(t, err)
		var credited float64
		for _, mf := range families {
			if mf.GetName() == "souq_wallet_credited_minor_total" {
				credited = mf.GetMetric()[0].GetCounter().GetValue()
			}
		}
		assert.Equal(t, float64(8750), credited)
	})

	t.Run("missing ledger entry is dropped", func(t *testing.T) {
		job := NewWalletCreditedJob(fakeWallets{ledger: map[int64]int64{}}, discardLogger(), nil)
		err := job.Handle(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("amount mismatch is dropped", func(t *testing.T) {
		job := NewWalletCreditedJob(fakeWallets{ledger: map[int64]int64{500: 9000}}, discardLogger(), nil)
		err := job.Handle(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("database errors retry", func(t *testing.T) {
		job := NewWalletCreditedJob(fakeWallets{err: errors.New("conn reset")}, discardLogger(), nil)
		err := job.Handle(context.Background(), task)
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestJobsHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}}, discardLogger()))
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 4, Retry: 1}, body)

	rec = serve(NewHandler(fakeInspector{err: errors.New("redis down")}, discardLogger()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
