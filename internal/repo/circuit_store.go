package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ampflux/internal/models"
)

type CircuitStore struct{ db *gorm.DB }

func NewCircuitStore(db *gorm.DB) *CircuitStore { return &CircuitStore{db: db} }

// SaveVersion assigns max+1 and inserts atomically. The project row is
// locked FOR UPDATE first, which linearizes concurrent saves per project
// without any cross-project contention; the unique (project_id,
// version_number) index backstops the invariant.
func (s *CircuitStore) SaveVersion(ctx context.Context, projectID uint, data []byte) (*models.CircuitVersion, error) {
	var v models.CircuitVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Project
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, projectID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var max int
		if err := tx.Model(&models.CircuitVersion{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&max).Error; err != nil {
			return err
		}

		v = models.CircuitVersion{
			ProjectID:     projectID,
			VersionNumber: max + 1,
			DataJSON:      datatypes.JSON(data),
		}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		return tx.Model(&p).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *CircuitStore) ListVersions(ctx context.Context, projectID uint) ([]models.CircuitVersion, error) {
	var out []models.CircuitVersion
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version_number DESC").
		Find(&out).Error
	return out, err
}

// CreateSimulation commits the pending placeholder before the task result
// is known; the gateway's completion callback reconciles it later.
func (s *CircuitStore) CreateSimulation(ctx context.Context, projectID uint, taskID string) (*models.Simulation, error) {
	sim := models.Simulation{
		ProjectID: projectID,
		TaskID:    taskID,
		Status:    models.SimulationPending,
	}
	if err := s.db.WithContext(ctx).Create(&sim).Error; err != nil {
		return nil, err
	}
	return &sim, nil
}

func (s *CircuitStore) FinishSimulation(ctx context.Context, taskID string, status models.SimulationStatus, result []byte) error {
	res := s.db.WithContext(ctx).Model(&models.Simulation{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":      status,
			"result_json": datatypes.JSON(result),
		})
	if res.Error != nil {
		return res.Error
	}
	// a terminal result must land on an existing row; zero matches means
	// the caller lost the result
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CircuitStore) GetSimulationByTaskID(ctx context.Context, taskID string) (*models.Simulation, error) {
	var sim models.Simulation
	err := s.db.WithContext(ctx).Where("task_id = ?", taskID).First(&sim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

func (s *CircuitStore) ListSimulations(ctx context.Context, projectID uint) ([]models.Simulation, error) {
	var out []models.Simulation
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("simulated_at DESC").
		Find(&out).Error
	return out, err
}
