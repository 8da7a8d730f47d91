package store

import (
	"database/sql"
	"errors"
	"time"

	"quill/internal/content"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const workflowColumns = "id, topic, tone, state, research_data, outline, draft_content, original_draft, edited_draft, edit_changes_json, seo_data_json, feedback, created_at, updated_at"

func scanWorkflow(scanner interface{ Scan(dest ...any) error }) (*content.Workflow, error) {
	var (
		id            string
		topic         string
		tone          sql.NullString
		stateStr      string
		research      sql.NullString
		outline       sql.NullString
		draft         sql.NullString
		originalDraft sql.NullString
		editedDraft   sql.NullString
		editChanges   sql.NullString
		seoData       sql.NullString
		feedback      sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&topic,
		&tone,
		&stateStr,
		&research,
		&outline,
		&draft,
		&originalDraft,
		&editedDraft,
		&editChanges,
		&seoData,
		&feedback,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	wf := &content.Workflow{
		ID:            id,
		Topic:         topic,
		Tone:          tone.String,
		State:         content.State(stateStr),
		ResearchData:  research.String,
		Outline:       outline.String,
		DraftContent:  draft.String,
		OriginalDraft: originalDraft.String,
		EditedDraft:   editedDraft.String,
		Changes:       content.DecodeEditChanges(editChanges.String),
		SEO:           content.DecodeSEO(seoData.String),
		Feedback:      feedback.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		wf.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		wf.UpdatedAt = updated
	}
	return wf, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
