package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/documents/domain"
)

type CustomerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CustomerRepo) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepo) List(ctx context.Context, contactType *domain.ContactType) ([]domain.Customer, error) {
	q := r.db.WithContext(ctx).Model(&domain.Customer{})
	if contactType != nil {
		// "both" entries show up in either listing.
		q = q.Where("contact_type IN ?", []domain.ContactType{*contactType, domain.ContactBoth})
	}
	var customers []domain.Customer
	if err := q.Order("name").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *CustomerRepo) Save(ctx context.Context, c *domain.Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}
