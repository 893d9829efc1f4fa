//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/model"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/broadcast"
	"contentforge/internal/infra/worker"
)

type chatFixture struct {
	uc        *chatUC
	accounts  *memAccountRepo
	artifacts *memArtifactRepo
	orch      *fakeOrchestrator
	hub       *broadcast.Hub
	pool      *worker.Pool
}

func newChatFixture(t *testing.T, orchOutcome ports.Outcome, accounts ...*model.Account) *chatFixture {
	t.Helper()
	logger := zerolog.Nop()
	f := &chatFixture{
		accounts:  newMemAccountRepo(accounts...),
		artifacts: &memArtifactRepo{},
		orch:      &fakeOrchestrator{outcome: orchOutcome},
		hub:       broadcast.NewHub(&logger),
	}
	f.pool = worker.NewPool(2, 16, &logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.pool.Shutdown(ctx)
	})
	f.uc = NewChatService(
		f.accounts, f.artifacts, fakeTxManager{}, NewQuotaGovernor(), f.orch,
		&fakeLocker{}, f.hub, f.pool, time.Second, &logger)
	return f
}

func proAccount(used int) *model.Account {
	a, _ := model.NewAccount("acct-1", "pro@example.com", model.TierPro, time.Now())
	a.QuestionsUsed = used
	return a
}

func TestSubmitChatReservesAndGenerates(t *testing.T) {
	f := newChatFixture(t, ports.Outcome{Payload: "reply", Provider: "openai"}, proAccount(0))

	ack, err := f.uc.SubmitChatRequest(context.Background(), "", "acct-1", "explain channels", "general")
	if err != nil {
		t.Fatal(err)
	}
	if !ack.Accepted || ack.TopicID == "" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if ack.RemainingUnits != 149 {
		t.Errorf("remaining = %d, want 149", ack.RemainingUnits)
	}

	if !waitFor(2*time.Second, func() bool { return f.artifacts.count() == 1 }) {
		t.Fatal("artifact never persisted")
	}
	arts, _ := f.artifacts.ListByTopic(context.Background(), nil, ack.TopicID)
	if len(arts) != 1 || arts[0].Kind != model.ArtifactChatReply || arts[0].Content != "reply" {
		t.Fatalf("unexpected artifact: %+v", arts)
	}
	if got := f.accounts.usage("acct-1"); got != 1 {
		t.Errorf("usage = %d, want 1", got)
	}
}

func TestSubmitChatDeniedWhenExhausted(t *testing.T) {
	f := newChatFixture(t, ports.Outcome{Payload: "reply"}, proAccount(150))

	ack, err := f.uc.SubmitChatRequest(context.Background(), "t1", "acct-1", "question", "general")
	if err != nil {
		t.Fatal(err)
	}
	if ack.Accepted {
		t.Fatal("exhausted account should be denied")
	}
	if ack.Reason == "" {
		t.Error("denial should carry a reason")
	}
	if f.orch.generations() != 0 {
		t.Error("orchestrator invoked for a denied request")
	}
	if got := f.accounts.usage("acct-1"); got != 150 {
		t.Errorf("denied request changed usage: %d", got)
	}
}

func TestDegradedOutcomeRefundsQuota(t *testing.T) {
	f := newChatFixture(t, ports.Outcome{
		Payload:      "static fallback",
		Provider:     "fallback",
		Degraded:     true,
		FailureClass: domain.ErrorClassTransient,
	}, proAccount(10))

	ack, err := f.uc.SubmitChatRequest(context.Background(), "t1", "acct-1", "question", "general")
	if err != nil || !ack.Accepted {
		t.Fatalf("ack=%+v err=%v", ack, err)
	}

	// The unit is reserved at admission and given back once the degraded
	// outcome lands.
	if !waitFor(2*time.Second, func() bool { return f.accounts.usage("acct-1") == 10 }) {
		t.Fatalf("usage = %d, want refund back to 10", f.accounts.usage("acct-1"))
	}
	if !waitFor(time.Second, func() bool { return f.artifacts.count() == 1 }) {
		t.Fatal("degraded artifact not persisted")
	}
	arts, _ := f.artifacts.ListByTopic(context.Background(), nil, "t1")
	if !arts[0].Degraded {
		t.Error("artifact should be flagged degraded")
	}
}

func TestCompletionEventPublished(t *testing.T) {
	f := newChatFixture(t, ports.Outcome{Payload: "reply", Provider: "openai"}, proAccount(0))
	sub := f.hub.Subscribe("t9")
	defer f.hub.Unsubscribe(sub)

	if _, err := f.uc.SubmitChatRequest(context.Background(), "t9", "acct-1", "question", "general"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-sub.C:
		if ev.Type != broadcast.EventCompleted || ev.Payload != "reply" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event")
	}
}

func TestSubmitChatValidation(t *testing.T) {
	f := newChatFixture(t, ports.Outcome{}, proAccount(0))

	if _, err := f.uc.SubmitChatRequest(context.Background(), "", "acct-1", "   ", "general"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("blank prompt: got %v, want ErrInvalidArgument", err)
	}
	if _, err := f.uc.SubmitChatRequest(context.Background(), "", "missing", "question", "general"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown account: got %v, want ErrNotFound", err)
	}
}

func TestLockFailureSurfaces(t *testing.T) {
	logger := zerolog.Nop()
	locker := &fakeLocker{failNext: true}
	pool := worker.NewPool(1, 4, &logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	uc := NewChatService(
		newMemAccountRepo(proAccount(0)), &memArtifactRepo{}, fakeTxManager{},
		NewQuotaGovernor(), &fakeOrchestrator{}, locker, broadcast.NewHub(&logger),
		pool, time.Second, &logger)

	if _, err := uc.SubmitChatRequest(context.Background(), "", "acct-1", "question", "general"); !errors.Is(err, domain.ErrLockNotAcquired) {
		t.Errorf("got %v, want ErrLockNotAcquired", err)
	}
}
