package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/repository"
)

// WidgetRepo persists the widget aggregate across widgets, widget_members,
// widget_contents and widget_reactions.
//
// Mutations serialize per widget: each one runs in a transaction that locks
// the widget row first, then applies targeted statements (counter increments,
// single-row inserts/deletes) instead of rewriting the aggregate. Concurrent
// toggles or appends against the same widget therefore cannot lose updates.
type WidgetRepo struct {
	pool *pgxpool.Pool
}

func NewWidgetRepo(pool *pgxpool.Pool) *WidgetRepo {
	return &WidgetRepo{pool: pool}
}

func (r *WidgetRepo) Create(ctx context.Context, w *domain.Widget) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO widgets (id, name, creator_id, is_alone, created_at) VALUES ($1, $2, $3, $4, $5)`,
		w.ID, w.Name, w.CreatorID, w.IsAlone, w.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, m := range w.Members {
		_, err = tx.Exec(ctx,
			`INSERT INTO widget_members (widget_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			w.ID, m.ID, m.JoinedAt,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *WidgetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Widget, error) {
	return r.getWhere(ctx, `w.id = $1`, id)
}

func (r *WidgetRepo) GetForMember(ctx context.Context, id, userID uuid.UUID) (*domain.Widget, error) {
	cond := `w.id = $1 AND EXISTS (
		SELECT 1 FROM widget_members m WHERE m.widget_id = w.id AND m.user_id = $2)`
	return r.getWhere(ctx, cond, id, userID)
}

func (r *WidgetRepo) GetForMemberWithContent(ctx context.Context, id, userID, contentID uuid.UUID) (*domain.Widget, error) {
	cond := `w.id = $1 AND EXISTS (
		SELECT 1 FROM widget_members m WHERE m.widget_id = w.id AND m.user_id = $2)
	AND EXISTS (
		SELECT 1 FROM widget_contents c WHERE c.widget_id = w.id AND c.id = $3)`
	return r.getWhere(ctx, cond, id, userID, contentID)
}

func (r *WidgetRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]domain.Widget, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.id FROM widgets w
		 JOIN widget_members m ON m.widget_id = w.id
		 WHERE m.user_id = $1
		 ORDER BY w.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	widgets := make([]domain.Widget, 0, len(ids))
	for _, id := range ids {
		w, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if w != nil {
			widgets = append(widgets, *w)
		}
	}
	return widgets, nil
}

func (r *WidgetRepo) AddMember(ctx context.Context, widgetID, userID uuid.UUID, joinedAt time.Time) error {
	return r.mutate(ctx, widgetID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO widget_members (widget_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			widgetID, userID, joinedAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE widgets SET is_alone = FALSE WHERE id = $1`, widgetID)
		return err
	})
}

func (r *WidgetRepo) RemoveMember(ctx context.Context, widgetID, userID uuid.UUID) error {
	return r.mutate(ctx, widgetID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM widget_members WHERE widget_id = $1 AND user_id = $2`,
			widgetID, userID,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE widgets SET is_alone = (
				SELECT count(*) FROM widget_members m WHERE m.widget_id = widgets.id) = 1
			 WHERE id = $1`,
			widgetID,
		)
		return err
	})
}

func (r *WidgetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM widgets WHERE id = $1`, id)
	return err
}

func (r *WidgetRepo) RemoveUserFromAll(ctx context.Context, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id FROM widgets
		 WHERE id IN (SELECT widget_id FROM widget_members WHERE user_id = $1)
		 FOR UPDATE`,
		userID,
	)
	if err != nil {
		return err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM widget_members WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE widgets SET is_alone = TRUE
		 WHERE id = ANY($1)
		 AND (SELECT count(*) FROM widget_members m WHERE m.widget_id = widgets.id) = 1`,
		ids,
	)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`DELETE FROM widgets
		 WHERE id = ANY($1)
		 AND NOT EXISTS (SELECT 1 FROM widget_members m WHERE m.widget_id = widgets.id)`,
		ids,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *WidgetRepo) AppendContent(ctx context.Context, widgetID uuid.UUID, item *domain.ContentItem) error {
	return r.mutate(ctx, widgetID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO widget_contents (id, widget_id, sender_id, type, data, reaction_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, widgetID, item.SenderID, item.Type, item.Data, item.ReactionCount, item.CreatedAt,
		)
		return err
	})
}

func (r *WidgetRepo) ToggleReaction(ctx context.Context, widgetID uuid.UUID, reaction *domain.ReactionItem) (bool, error) {
	var added bool
	err := r.mutate(ctx, widgetID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM widget_reactions
			 WHERE widget_id = $1 AND content_id = $2 AND sender_id = $3 AND type = $4`,
			widgetID, reaction.ContentID, reaction.SenderID, reaction.Type,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() > 0 {
			added = false
			_, err = tx.Exec(ctx,
				`UPDATE widget_contents SET reaction_count = reaction_count - 1
				 WHERE id = $1 AND reaction_count > 0`,
				reaction.ContentID,
			)
			return err
		}

		added = true
		_, err = tx.Exec(ctx,
			`INSERT INTO widget_reactions (widget_id, content_id, sender_id, type, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			widgetID, reaction.ContentID, reaction.SenderID, reaction.Type, reaction.CreatedAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE widget_contents SET reaction_count = reaction_count + 1 WHERE id = $1`,
			reaction.ContentID,
		)
		return err
	})
	return added, err
}

// mutate runs fn in a transaction holding the widget's row lock, serializing
// all mutations of one aggregate.
func (r *WidgetRepo) mutate(ctx context.Context, widgetID uuid.UUID, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM widgets WHERE id = $1 FOR UPDATE`, widgetID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("widget %s: %w", widgetID, repository.ErrWidgetGone)
	}
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *WidgetRepo) getWhere(ctx context.Context, cond string, args ...any) (*domain.Widget, error) {
	query := `SELECT w.id, w.name, w.creator_id, w.is_alone, w.created_at FROM widgets w WHERE ` + cond

	var w domain.Widget
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&w.ID, &w.Name, &w.CreatorID, &w.IsAlone, &w.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if w.Members, err = r.loadMembers(ctx, w.ID); err != nil {
		return nil, err
	}
	if w.Contents, err = r.loadContents(ctx, w.ID); err != nil {
		return nil, err
	}
	if w.Reactions, err = r.loadReactions(ctx, w.ID); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WidgetRepo) loadMembers(ctx context.Context, widgetID uuid.UUID) ([]domain.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.profile_image, m.joined_at
		 FROM widget_members m
		 JOIN users u ON m.user_id = u.id
		 WHERE m.widget_id = $1
		 ORDER BY m.joined_at, u.id`,
		widgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Username, &m.ProfileImage, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *WidgetRepo) loadContents(ctx context.Context, widgetID uuid.UUID) ([]domain.ContentItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender_id, type, data, reaction_count, created_at
		 FROM widget_contents
		 WHERE widget_id = $1
		 ORDER BY seq`,
		widgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []domain.ContentItem
	for rows.Next() {
		var c domain.ContentItem
		if err := rows.Scan(&c.ID, &c.SenderID, &c.Type, &c.Data, &c.ReactionCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func (r *WidgetRepo) loadReactions(ctx context.Context, widgetID uuid.UUID) ([]domain.ReactionItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.sender_id, r.content_id, r.type, r.created_at, u.username
		 FROM widget_reactions r
		 JOIN users u ON r.sender_id = u.id
		 WHERE r.widget_id = $1
		 ORDER BY r.created_at`,
		widgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []domain.ReactionItem
	for rows.Next() {
		var re domain.ReactionItem
		if err := rows.Scan(&re.SenderID, &re.ContentID, &re.Type, &re.CreatedAt, &re.SenderUsername); err != nil {
			return nil, err
		}
		reactions = append(reactions, re)
	}
	return reactions, rows.Err()
}
