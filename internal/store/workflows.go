package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"quill/internal/content"
)

// ErrAlreadyExists is returned by Create when the id is taken.
var ErrAlreadyExists = errors.New("workflow already exists")

const defaultListLimit = 50

// resumableStates are picked up by the recovery sweep. Optimizing is resumable
// only until SEO data has been stored.
var resumableStates = []content.State{
	content.StateIdle,
	content.StateResearching,
	content.StateOutlining,
	content.StateDrafting,
	content.StateEditing,
}

// Create inserts a new workflow row together with any chat entries it carries.
func (s *Store) Create(ctx context.Context, wf *content.Workflow) error {
	if wf == nil {
		return errors.New("workflow is nil")
	}
	ctx = orBackground(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin create tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		args, err := workflowArgs(wf)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workflows (`+workflowColumns+`) VALUES (`+makePlaceholders(14)+`)`,
			args...,
		); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, wf.ID)
			}
			return fmt.Errorf("insert workflow: %w", err)
		}
		if err := appendChat(ctx, tx, wf, 0); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Get fetches a workflow by identifier. A missing id returns (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*content.Workflow, error) {
	ctx = orBackground(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	history, err := s.chatHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	wf.ChatHistory = history
	return wf, nil
}

// Save persists the workflow fields and appends chat entries not yet stored.
// Stored chat entries are never rewritten or removed.
func (s *Store) Save(ctx context.Context, wf *content.Workflow) error {
	if wf == nil {
		return errors.New("workflow is nil")
	}
	ctx = orBackground(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		args, err := workflowArgs(wf)
		if err != nil {
			return err
		}
		updateArgs := append(append([]any{}, args[1:]...), args[0])
		res, err := tx.ExecContext(ctx,
			`UPDATE workflows
             SET topic = ?, tone = ?, state = ?, research_data = ?, outline = ?,
                 draft_content = ?, original_draft = ?, edited_draft = ?,
                 edit_changes_json = ?, seo_data_json = ?, feedback = ?,
                 created_at = ?, updated_at = ?
             WHERE id = ?`,
			updateArgs...,
		)
		if err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("update workflow %s: %w", wf.ID, sql.ErrNoRows)
		}

		var stored int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM chat_messages WHERE workflow_id = ?`, wf.ID,
		).Scan(&stored); err != nil {
			return fmt.Errorf("count chat messages: %w", err)
		}
		if err := appendChat(ctx, tx, wf, stored); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// List returns the most recently created workflows, newest first. Chat
// history is not loaded.
func (s *Store) List(ctx context.Context, limit int) ([]*content.Workflow, error) {
	ctx = orBackground(ctx)
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*content.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// ResumableIDs returns ids of workflows the step loop can still advance
// without a human action, oldest first.
func (s *Store) ResumableIDs(ctx context.Context) ([]string, error) {
	ctx = orBackground(ctx)
	args := make([]any, 0, len(resumableStates)+1)
	for _, state := range resumableStates {
		args = append(args, string(state))
	}
	args = append(args, string(content.StateOptimizing))
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM workflows
         WHERE state IN (`+makePlaceholders(len(resumableStates))+`)
            OR (state = ? AND (seo_data_json IS NULL OR seo_data_json = ''))
         ORDER BY updated_at ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("resumable workflows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats returns a count of workflows grouped by state.
func (s *Store) Stats(ctx context.Context) (map[content.State]int, error) {
	rows, err := s.db.QueryContext(orBackground(ctx), `SELECT state, COUNT(1) FROM workflows GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("workflow stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[content.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[content.State(state)] = count
	}
	return stats, rows.Err()
}

func (s *Store) chatHistory(ctx context.Context, id string) ([]content.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM chat_messages WHERE workflow_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	defer rows.Close()

	var history []content.ChatMessage
	for rows.Next() {
		var role, text, created string
		if err := rows.Scan(&role, &text, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg := content.ChatMessage{Role: content.Role(role), Content: text}
		if ts, err := parseTimeString(created); err == nil {
			msg.Timestamp = ts
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

func workflowArgs(wf *content.Workflow) ([]any, error) {
	changes, err := content.EncodeEditChanges(wf.Changes)
	if err != nil {
		return nil, fmt.Errorf("encode edit changes: %w", err)
	}
	seo, err := content.EncodeSEO(wf.SEO)
	if err != nil {
		return nil, fmt.Errorf("encode seo data: %w", err)
	}
	return []any{
		wf.ID,
		wf.Topic,
		nullableString(wf.Tone),
		string(wf.State),
		nullableString(wf.ResearchData),
		nullableString(wf.Outline),
		nullableString(wf.DraftContent),
		nullableString(wf.OriginalDraft),
		nullableString(wf.EditedDraft),
		nullableString(changes),
		nullableString(seo),
		nullableString(wf.Feedback),
		formatTime(wf.CreatedAt),
		formatTime(wf.UpdatedAt),
	}, nil
}

func appendChat(ctx context.Context, tx *sql.Tx, wf *content.Workflow, from int) error {
	for seq := from; seq < len(wf.ChatHistory); seq++ {
		msg := wf.ChatHistory[seq]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (workflow_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			wf.ID, seq, string(msg.Role), msg.Content, formatTime(msg.Timestamp),
		); err != nil {
			return fmt.Errorf("append chat message: %w", err)
		}
	}
	return nil
}
