package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/credible/credit-service/internal/domain"
	"github.com/google/uuid"
)

// Loan lifecycle routing keys that trigger a rescore of the borrower.
const (
	RoutingKeyLoanFunded    = "loan.funded"
	RoutingKeyLoanCompleted = "loan.completed"
	RoutingKeyLoanDefaulted = "loan.defaulted"
)

// LoanEventConsumer rescores a borrower whenever one of their loans changes state.
type LoanEventConsumer struct {
	service *Service
	logger  *slog.Logger
}

// LoanEventConsumer returns a consumer bound to this service.
func (s *Service) LoanEventConsumer() *LoanEventConsumer {
	return &LoanEventConsumer{service: s, logger: s.logger.With("component", "loan_event_consumer")}
}

// Bindings maps each loan routing key to HandleMessage.
func (c *LoanEventConsumer) Bindings() map[string]func([]byte) bool {
	return map[string]func([]byte) bool{
		RoutingKeyLoanFunded:    c.HandleMessage,
		RoutingKeyLoanCompleted: c.HandleMessage,
		RoutingKeyLoanDefaulted: c.HandleMessage,
	}
}

// HandleMessage returns true to ack and false to requeue. Malformed payloads
// and gateway backoff errors are acked so they do not loop on the queue.
func (c *LoanEventConsumer) HandleMessage(body []byte) bool {
	var event domain.LoanEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Warn("failed to unmarshal loan event; dropping", "error", err)
		return true
	}
	if event.BorrowerID == uuid.Nil {
		c.logger.Warn("loan event without borrower id; dropping", "event_id", event.EventID, "loan_id", event.LoanID)
		return true
	}

	_, err := c.service.CalculateCreditScore(context.Background(), event.BorrowerID, TriggerLoanEvent)
	switch {
	case err == nil:
		return true
	case isBackoffError(err), errors.Is(err, ErrScoringNotConfigured):
		c.logger.Warn("skipping rescore for loan event", "event_id", event.EventID, "borrower_id", event.BorrowerID, "kind", ErrorKind(err))
		return true
	default:
		return false
	}
}
