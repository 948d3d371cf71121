package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tara-platform/report-engine/internal/snapshot"
)

// PostgresEntitySource reads the live assessment entities owned by the
// surrounding CRUD platform. All access is read-only; one repeatable-read
// transaction per call keeps the returned set consistent.
type PostgresEntitySource struct {
	db *sqlx.DB
}

// NewPostgresEntitySource creates an entity source over the platform's
// entity tables.
func NewPostgresEntitySource(db *sqlx.DB) *PostgresEntitySource {
	return &PostgresEntitySource{db: db}
}

// ProjectEntities loads every assessment entity of a project.
func (s *PostgresEntitySource) ProjectEntities(ctx context.Context, projectID string) (*snapshot.ProjectEntities, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY`); err != nil {
		return nil, fmt.Errorf("failed to set isolation level: %w", err)
	}

	entities := &snapshot.ProjectEntities{}

	if err := tx.SelectContext(ctx, &entities.Assets,
		`SELECT * FROM assets WHERE project_id = $1 ORDER BY id`, projectID); err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	if err := tx.SelectContext(ctx, &entities.DamageScenarios, `
		SELECT ds.* FROM damage_scenarios ds
		JOIN assets a ON a.id = ds.asset_id
		WHERE a.project_id = $1 ORDER BY ds.id`, projectID); err != nil {
		return nil, fmt.Errorf("failed to load damage scenarios: %w", err)
	}

	if err := tx.SelectContext(ctx, &entities.ThreatRisks, `
		SELECT t.* FROM threat_risks t
		JOIN assets a ON a.id = t.asset_id
		WHERE a.project_id = $1 ORDER BY t.id`, projectID); err != nil {
		return nil, fmt.Errorf("failed to load threat risks: %w", err)
	}

	if err := tx.SelectContext(ctx, &entities.AttackPaths, `
		SELECT p.* FROM attack_paths p
		JOIN threat_risks t ON t.id = p.threat_risk_id
		JOIN assets a ON a.id = t.asset_id
		WHERE a.project_id = $1 ORDER BY p.id`, projectID); err != nil {
		return nil, fmt.Errorf("failed to load attack paths: %w", err)
	}

	if err := tx.SelectContext(ctx, &entities.ControlMeasures, `
		SELECT m.* FROM control_measures m
		JOIN attack_paths p ON p.id = m.attack_path_id
		JOIN threat_risks t ON t.id = p.threat_risk_id
		JOIN assets a ON a.id = t.asset_id
		WHERE a.project_id = $1 ORDER BY m.id`, projectID); err != nil {
		return nil, fmt.Errorf("failed to load control measures: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}

	return entities, nil
}

var _ snapshot.EntitySource = (*PostgresEntitySource)(nil)
