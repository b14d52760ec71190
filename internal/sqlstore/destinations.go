package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"bento-route-planner/internal/database"
	"bento-route-planner/internal/models"
)

type destinationRepository struct {
	store *Store
}

const upsertDestinationSQL = `INSERT INTO destinations (name, address, route_tag)
	VALUES (?, ?, ?)
	ON CONFLICT (name) DO UPDATE
	SET address = excluded.address,
		route_tag = excluded.route_tag`

func (r *destinationRepository) List(ctx context.Context, routeTag string) ([]models.Destination, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var rows *sql.Rows
	var err error

	if routeTag != "" && routeTag != models.AllRouteTags {
		query := `SELECT name, address, route_tag
		          FROM destinations
		          WHERE route_tag = ?
		          ORDER BY name`
		rows, err = r.store.db.QueryContext(ctx, r.store.rebind(query), routeTag)
	} else {
		query := `SELECT name, address, route_tag
		          FROM destinations
		          ORDER BY name`
		rows, err = r.store.db.QueryContext(ctx, query)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query destinations: %w", err)
	}
	defer rows.Close()

	destinations := []models.Destination{}
	for rows.Next() {
		var d models.Destination
		if err := rows.Scan(&d.Name, &d.Address, &d.RouteTag); err != nil {
			return nil, fmt.Errorf("failed to scan destination: %w", err)
		}
		destinations = append(destinations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating destinations: %w", err)
	}

	return destinations, nil
}

func (r *destinationRepository) Get(ctx context.Context, name string) (*models.Destination, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT name, address, route_tag FROM destinations WHERE name = ?`

	var d models.Destination
	err := r.store.db.QueryRowContext(ctx, r.store.rebind(query), name).Scan(&d.Name, &d.Address, &d.RouteTag)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}

	return &d, nil
}

func (r *destinationRepository) Upsert(ctx context.Context, d *models.Destination) error {
	if err := database.ValidateDestinations(*d); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, r.store.rebind(upsertDestinationSQL), d.Name, d.Address, d.RouteTag)
	if err != nil {
		return fmt.Errorf("failed to upsert destination: %w", err)
	}
	return nil
}

func (r *destinationRepository) UpsertMany(ctx context.Context, ds []models.Destination) (int, error) {
	if len(ds) == 0 {
		return 0, nil
	}
	if err := database.ValidateDestinations(ds...); err != nil {
		return 0, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.store.rebind(upsertDestinationSQL))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range ds {
		if _, err := stmt.ExecContext(ctx, d.Name, d.Address, d.RouteTag); err != nil {
			return 0, fmt.Errorf("failed to upsert destination %q: %w", d.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upserts: %w", err)
	}

	return len(ds), nil
}

func (r *destinationRepository) Delete(ctx context.Context, name string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `DELETE FROM destinations WHERE name = ?`
	result, err := r.store.db.ExecContext(ctx, r.store.rebind(query), name)
	if err != nil {
		return fmt.Errorf("failed to delete destination: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}

	return nil
}

func (r *destinationRepository) DeleteMany(ctx context.Context, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	query := fmt.Sprintf(`DELETE FROM destinations WHERE name IN (%s)`, placeholders(len(names)))
	result, err := r.store.db.ExecContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete destinations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
