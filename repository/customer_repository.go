package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements the CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

// ByUUID retrieves a customer by UUID
func (r *CustomerRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.getDB(ctx).Where("uuid = ?", id).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer by uuid %s: %w", id, err)
	}
	return &customer, nil
}

// ListAll loads the whole customer base ordered by id
func (r *CustomerRepositoryImpl) ListAll(ctx context.Context) ([]*models.Customer, error) {
	var customers []*models.Customer
	if err := r.getDB(ctx).Order("id ASC").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}
