package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"miles/internal/core"
	"miles/internal/rules"
)

// Conditions and the reward spec are stored as JSON columns: they are
// read as a unit, never queried field-by-field.

var _ rules.Store = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) ListRules(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instrument_type_id, name, description, enabled, priority, conditions, reward, created_at
		FROM reward_rules WHERE instrument_type_id = ?`, instrumentTypeID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.RewardRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rules.SortByPriority(out)
	return out, nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RewardRule) (core.RewardRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RewardRule{}, fmt.Errorf("validate rule: %w", err)
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	conditions, reward, err := marshalRule(rule)
	if err != nil {
		return core.RewardRule{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reward_rules (id, instrument_type_id, name, description, enabled, priority, conditions, reward, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.InstrumentTypeID, rule.Name, rule.Description,
		rule.Enabled, rule.Priority, conditions, reward, rule.CreatedAt)
	if err != nil {
		return core.RewardRule{}, fmt.Errorf("insert rule: %w", err)
	}

	slog.InfoContext(ctx, "Reward rule created",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"instrument_type_id", rule.InstrumentTypeID,
		"priority", rule.Priority)

	return rule, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RewardRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("validate rule: %w", err)
	}

	conditions, reward, err := marshalRule(rule)
	if err != nil {
		return err
	}

	// ID and created_at stay as inserted.
	res, err := r.db.ExecContext(ctx, `
		UPDATE reward_rules
		SET instrument_type_id = ?, name = ?, description = ?, enabled = ?, priority = ?, conditions = ?, reward = ?
		WHERE id = ?`,
		rule.InstrumentTypeID, rule.Name, rule.Description, rule.Enabled,
		rule.Priority, conditions, reward, rule.ID.String())
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrRuleNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	// Deleting an unknown id is a no-op.
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reward_rules WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

func marshalRule(rule core.RewardRule) (conditions, reward []byte, err error) {
	if rule.Conditions == nil {
		rule.Conditions = []core.Condition{}
	}
	conditions, err = json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal conditions: %w", err)
	}
	reward, err = json.Marshal(rule.Reward)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal reward spec: %w", err)
	}
	return conditions, reward, nil
}

func scanRule(row rowScanner) (core.RewardRule, error) {
	var (
		rule       core.RewardRule
		id         string
		conditions []byte
		reward     []byte
		createdAt  sql.NullTime
	)
	err := row.Scan(&id, &rule.InstrumentTypeID, &rule.Name, &rule.Description,
		&rule.Enabled, &rule.Priority, &conditions, &reward, &createdAt)
	if err != nil {
		return core.RewardRule{}, err
	}
	rule.ID, err = uuid.Parse(id)
	if err != nil {
		return core.RewardRule{}, fmt.Errorf("parse rule id %q: %w", id, err)
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return core.RewardRule{}, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(reward, &rule.Reward); err != nil {
		return core.RewardRule{}, fmt.Errorf("unmarshal reward spec: %w", err)
	}
	rule.CreatedAt = createdAt.Time
	return rule, nil
}
