package app

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/credible/credit-service/internal/domain"
	"github.com/credible/credit-service/pkg/scoringclient"
	"github.com/google/uuid"
)

func loanEventBody(t *testing.T, event domain.LoanEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal loan event: %v", err)
	}
	return body
}

func TestLoanEventConsumer_RescoresBorrower(t *testing.T) {
	repo := newScenarioRepo()
	publisher := &publisherStub{}
	svc := NewService(repo, &scorerStub{}, publisher, discardLogger())
	borrower := uuid.New()

	ok := svc.LoanEventConsumer().HandleMessage(loanEventBody(t, domain.LoanEvent{
		EventID:    "evt-1",
		EventType:  RoutingKeyLoanCompleted,
		LoanID:     uuid.New(),
		BorrowerID: borrower,
		Status:     domain.LoanCompleted,
	}))

	if !ok {
		t.Fatalf("expected message to be acked")
	}
	if repo.createCalls != 1 {
		t.Fatalf("expected one credit score insert, got %d", repo.createCalls)
	}
	if len(publisher.events) != 1 || publisher.events[0].UserID != borrower || publisher.events[0].Trigger != TriggerLoanEvent {
		t.Fatalf("unexpected published events: %+v", publisher.events)
	}
}

func TestLoanEventConsumer_DropsMalformedPayloads(t *testing.T) {
	repo := newScenarioRepo()
	scorer := &scorerStub{}
	consumer := NewService(repo, scorer, &publisherStub{}, discardLogger()).LoanEventConsumer()

	if !consumer.HandleMessage([]byte("{not json")) {
		t.Fatalf("expected malformed payload to be acked")
	}
	if !consumer.HandleMessage(loanEventBody(t, domain.LoanEvent{EventID: "evt-2", LoanID: uuid.New()})) {
		t.Fatalf("expected event without borrower to be acked")
	}
	if scorer.calls != 0 {
		t.Fatalf("expected no scoring calls, got %d", scorer.calls)
	}
}

func TestLoanEventConsumer_AckDecisions(t *testing.T) {
	tests := []struct {
		name    string
		scorer  Scorer
		repo    *repoStub
		wantAck bool
	}{
		{name: "rate limited is dropped", scorer: &scorerStub{err: scoringclient.NewAPIError(429, nil)}, repo: newScenarioRepo(), wantAck: true},
		{name: "quota exhausted is dropped", scorer: &scorerStub{err: scoringclient.NewAPIError(402, nil)}, repo: newScenarioRepo(), wantAck: true},
		{name: "not configured is dropped", scorer: nil, repo: newScenarioRepo(), wantAck: true},
		{name: "upstream failure is requeued", scorer: &scorerStub{err: scoringclient.NewAPIError(500, nil)}, repo: newScenarioRepo(), wantAck: false},
		{name: "malformed response is requeued", scorer: &scorerStub{err: scoringclient.ErrMalformedResponse}, repo: newScenarioRepo(), wantAck: false},
		{name: "persistence failure is requeued", scorer: &scorerStub{}, repo: &repoStub{createErr: errors.New("db down")}, wantAck: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.repo, tt.scorer, &publisherStub{}, discardLogger())
			got := svc.LoanEventConsumer().HandleMessage(loanEventBody(t, domain.LoanEvent{
				EventID:    "evt-3",
				LoanID:     uuid.New(),
				BorrowerID: uuid.New(),
				Status:     domain.LoanDefaulted,
			}))
			if got != tt.wantAck {
				t.Fatalf("expected ack=%v, got %v", tt.wantAck, got)
			}
		})
	}
}

func TestLoanEventConsumer_Bindings(t *testing.T) {
	consumer := NewService(&repoStub{}, nil, &publisherStub{}, discardLogger()).LoanEventConsumer()
	bindings := consumer.Bindings()

	for _, key := range []string{RoutingKeyLoanFunded, RoutingKeyLoanCompleted, RoutingKeyLoanDefaulted} {
		if bindings[key] == nil {
			t.Fatalf("expected handler for %s", key)
		}
	}
	if len(bindings) != 3 {
		t.Fatalf("expected 3 bindings, got %d", len(bindings))
	}
}
