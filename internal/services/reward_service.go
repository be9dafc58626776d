package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"miles/internal/amqp"
	"miles/internal/core"
	"miles/internal/engine"
	"miles/internal/rules"
	"miles/internal/storage"
)

// RewardService orchestrates transaction scoring, rule administration and
// simulation across SQLite, the calculation engine and AMQP.
type RewardService struct {
	storage    *storage.SQLiteRepository
	rules      *rules.CachedStore
	calc       *engine.Calculator
	sim        *engine.Simulator
	amqpClient *amqp.Client
}

func NewRewardService(repo *storage.SQLiteRepository, ruleStore *rules.CachedStore, calc *engine.Calculator, sim *engine.Simulator, amqpClient *amqp.Client) *RewardService {
	return &RewardService{
		storage:    repo,
		rules:      ruleStore,
		calc:       calc,
		sim:        sim,
		amqpClient: amqpClient,
	}
}

// RecordedTransaction is a stored transaction together with its scoring.
type RecordedTransaction struct {
	TransactionID int64                  `json:"transaction_id"`
	Result        core.CalculationResult `json:"result"`
}

// RecordTransaction scores a transaction, persists it and notifies the
// report worker. Persisting happens first so a broker outage never loses
// a transaction.
func (s *RewardService) RecordTransaction(ctx context.Context, candidate core.TransactionCandidate) (RecordedTransaction, error) {
	if err := candidate.Validate(); err != nil {
		return RecordedTransaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	result, err := s.calc.Calculate(ctx, candidate)
	if err != nil {
		return RecordedTransaction{}, fmt.Errorf("calculate points: %w", err)
	}

	id, err := s.storage.RecordTransaction(ctx, candidate, result)
	if err != nil {
		return RecordedTransaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishTransactionRecorded(ctx, id, candidate.InstrumentID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction message",
			"transaction_id", id, "error", err)
		// Don't fail the request, the transaction is saved locally.
	}

	return RecordedTransaction{TransactionID: id, Result: result}, nil
}

// Simulate scores a hypothetical transaction against every eligible
// instrument without consuming any cap budget.
func (s *RewardService) Simulate(ctx context.Context, candidate core.TransactionCandidate, targetCurrency string) ([]core.SimulationResult, error) {
	// The simulator assigns the instrument itself, so only the
	// transaction fields are validated here.
	if err := candidate.Date.Validate(); err != nil {
		return nil, fmt.Errorf("validate transaction: %w", err)
	}
	if strings.TrimSpace(candidate.Currency) == "" {
		return nil, fmt.Errorf("validate transaction: empty currency")
	}

	instruments, err := s.storage.ListInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	return s.sim.SimulateAll(ctx, candidate, instruments, targetCurrency), nil
}

// ListRules returns all rules for an instrument type, highest priority first.
func (s *RewardService) ListRules(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error) {
	return s.rules.ListRules(ctx, instrumentTypeID)
}

// CreateRule persists a rule and broadcasts the change.
func (s *RewardService) CreateRule(ctx context.Context, rule core.RewardRule) (core.RewardRule, error) {
	created, err := s.rules.CreateRule(ctx, rule)
	if err != nil {
		return core.RewardRule{}, err
	}
	s.publishRuleChanged(ctx, created.ID, created.InstrumentTypeID, "create")
	return created, nil
}

// UpdateRule replaces a rule in place and broadcasts the change.
func (s *RewardService) UpdateRule(ctx context.Context, rule core.RewardRule) error {
	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return err
	}
	s.publishRuleChanged(ctx, rule.ID, rule.InstrumentTypeID, "update")
	return nil
}

// DeleteRule removes a rule. Deleting an unknown id is a no-op.
func (s *RewardService) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.rules.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.publishRuleChanged(ctx, id, 0, "delete")
	return nil
}

// CreateInstrument registers a payment instrument.
func (s *RewardService) CreateInstrument(ctx context.Context, in core.Instrument) (core.Instrument, error) {
	return s.storage.CreateInstrument(ctx, in)
}

// ListInstruments returns all registered instruments.
func (s *RewardService) ListInstruments(ctx context.Context) ([]core.Instrument, error) {
	return s.storage.ListInstruments(ctx)
}

// Overview aggregates stored transactions for a month.
func (s *RewardService) Overview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	return s.storage.MonthOverview(ctx, year, month)
}

// UpsertRate sets a currency conversion rate used by simulations.
func (s *RewardService) UpsertRate(ctx context.Context, from, to string, rate float64) error {
	return s.storage.UpsertRate(ctx, from, to, rate)
}

func (s *RewardService) publishTransactionRecorded(ctx context.Context, transactionID, instrumentID int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping transaction message")
		return nil
	}
	return s.amqpClient.PublishTransactionRecorded(ctx, transactionID, instrumentID)
}

func (s *RewardService) publishRuleChanged(ctx context.Context, ruleID uuid.UUID, instrumentTypeID int64, action string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishRuleChanged(ctx, ruleID.String(), instrumentTypeID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish rule changed message",
			"rule_id", ruleID, "action", action, "error", err)
	}
}

// Close closes storage and AMQP connections
func (s *RewardService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close reward service: %v", errs)
	}

	return nil
}
