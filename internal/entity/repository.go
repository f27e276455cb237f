package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository persists entity states.
type Repository interface {
	// List returns every persisted state.
	List(ctx context.Context) ([]State, error)

	// Upsert inserts or replaces the state of one entity.
	Upsert(ctx context.Context, state *State) error

	// Delete removes an entity. Deleting an unknown entity is not an error.
	Delete(ctx context.Context, entityID string) error
}

// SQLiteRepository implements Repository on the entity_states table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context) ([]State, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id, state, attributes, last_updated
		 FROM entity_states
		 ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("querying entity states: %w", err)
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var s State
		var attrs, updated string
		if err := rows.Scan(&s.EntityID, &s.State, &attrs, &updated); err != nil {
			return nil, fmt.Errorf("scanning entity state: %w", err)
		}
		if attrs != "" {
			if err := json.Unmarshal([]byte(attrs), &s.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshalling attributes of %s: %w", s.EntityID, err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			return nil, fmt.Errorf("parsing last_updated of %s: %w", s.EntityID, err)
		}
		s.LastUpdated = ts
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity states: %w", err)
	}
	return states, nil
}

// Upsert implements Repository.
func (r *SQLiteRepository) Upsert(ctx context.Context, state *State) error {
	attrs := "{}"
	if state.Attributes != nil {
		b, err := json.Marshal(state.Attributes)
		if err != nil {
			return fmt.Errorf("marshalling attributes: %w", err)
		}
		attrs = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entity_states (entity_id, state, attributes, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   state = excluded.state,
		   attributes = excluded.attributes,
		   last_updated = excluded.last_updated`,
		state.EntityID,
		state.State,
		attrs,
		state.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting entity state: %w", err)
	}
	return nil
}

// Delete implements Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, entityID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM entity_states WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("deleting entity state: %w", err)
	}
	return nil
}
