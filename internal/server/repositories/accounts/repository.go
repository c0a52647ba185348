package accounts

import (
	"context"

	"github.com/dmitrijs2005/peny/internal/server/models"
)

// Repository stores accounts. Reads skip soft-deleted rows unless the method
// says otherwise.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	// EmailTaken also counts soft-deleted accounts. exceptID, when set, is
	// ignored so an account may keep its own address.
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	Update(ctx context.Context, id string, patch models.AccountPatch, updatedBy string) (*models.Account, error)
	SoftDelete(ctx context.Context, id, deletedBy string) error
}
