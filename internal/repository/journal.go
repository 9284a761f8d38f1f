package repository

import (
	"context"
	"fmt"

	"github.com/darknetduel/client/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PurchaseJournal keeps every purchase attempt and its state changes so a
// timed-out purchase can be reconciled against the account balance later.
type PurchaseJournal struct {
	db *pgxpool.Pool
}

func NewPurchaseJournal(db *pgxpool.Pool) *PurchaseJournal {
	return &PurchaseJournal{db: db}
}

func (j *PurchaseJournal) Start(ctx context.Context, attempt domain.PurchaseAttempt) error {
	_, err := j.db.Exec(ctx, `
		INSERT INTO purchase_attempts (id, package_id, invoice_id, state, message, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, attempt.PackageID, attempt.InvoiceID, string(attempt.State), attempt.Message,
		attempt.StartedAt, attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (j *PurchaseJournal) Transition(ctx context.Context, attempt domain.PurchaseAttempt, tr domain.Transition) error {
	tx, err := j.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var crypts, newBalance *string
	if attempt.Result != nil {
		c, b := attempt.Result.Crypts.String(), attempt.Result.NewBalance.String()
		crypts, newBalance = &c, &b
	}

	tag, err := tx.Exec(ctx, `
		UPDATE purchase_attempts
		SET invoice_id = $2, state = $3, message = $4,
		    crypts = COALESCE($5::text::numeric, crypts), new_balance = COALESCE($6::text::numeric, new_balance),
		    updated_at = $7
		WHERE id = $1`,
		attempt.ID, attempt.InvoiceID, string(attempt.State), attempt.Message,
		crypts, newBalance, attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update attempt %s: %w", attempt.ID, pgx.ErrNoRows)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO purchase_transitions (attempt_id, from_state, to_state, invoice_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.AttemptID, string(tr.From), string(tr.To), tr.InvoiceID, tr.Message, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Recent returns the latest attempts, newest first.
func (j *PurchaseJournal) Recent(ctx context.Context, limit int) ([]domain.PurchaseAttempt, error) {
	rows, err := j.db.Query(ctx, `
		SELECT id, package_id, invoice_id, state, message, crypts::text, new_balance::text, started_at, updated_at
		FROM purchase_attempts
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.PurchaseAttempt
	for rows.Next() {
		var (
			a                  domain.PurchaseAttempt
			state              string
			crypts, newBalance *string
		)
		if err := rows.Scan(&a.ID, &a.PackageID, &a.InvoiceID, &state, &a.Message, &crypts, &newBalance, &a.StartedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.State = domain.FlowState(state)
		if crypts != nil && newBalance != nil {
			result, err := parseResult(*crypts, *newBalance)
			if err != nil {
				return nil, err
			}
			a.Result = result
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Transitions returns the recorded state changes of one attempt in order.
func (j *PurchaseJournal) Transitions(ctx context.Context, attemptID uuid.UUID) ([]domain.Transition, error) {
	rows, err := j.db.Query(ctx, `
		SELECT attempt_id, from_state, to_state, invoice_id, message, created_at
		FROM purchase_transitions
		WHERE attempt_id = $1
		ORDER BY id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var (
			tr       domain.Transition
			from, to string
		)
		if err := rows.Scan(&tr.AttemptID, &from, &to, &tr.InvoiceID, &tr.Message, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From, tr.To = domain.FlowState(from), domain.FlowState(to)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

func parseResult(crypts, newBalance string) (*domain.PurchaseResult, error) {
	c, err := decimal.NewFromString(crypts)
	if err != nil {
		return nil, fmt.Errorf("parse crypts: %w", err)
	}
	b, err := decimal.NewFromString(newBalance)
	if err != nil {
		return nil, fmt.Errorf("parse new balance: %w", err)
	}
	return &domain.PurchaseResult{Crypts: c, NewBalance: b}, nil
}
