package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/northbooks/northbooks/internal/documents/domain"
)

// CustomerService manages the customer/vendor directory.
type CustomerService struct {
	customers domain.CustomerRepository
	logger    *zap.Logger
}

func NewCustomerService(customers domain.CustomerRepository, logger *zap.Logger) *CustomerService {
	return &CustomerService{customers: customers, logger: logger}
}

// CreateCustomerParams describes a new directory entry.
type CreateCustomerParams struct {
	Name         string
	Email        string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	Province     string
	PostalCode   string
	Notes        string
	ContactType  domain.ContactType
}

func (s *CustomerService) Create(ctx context.Context, p CreateCustomerParams) (*domain.Customer, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if p.ContactType == "" {
		p.ContactType = domain.ContactCustomer
	}
	if !p.ContactType.IsValid() {
		return nil, fmt.Errorf("%w: unknown contact type %q", domain.ErrValidation, p.ContactType)
	}
	c := &domain.Customer{
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.Phone,
		AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2,
		City:         p.City,
		Province:     p.Province,
		PostalCode:   p.PostalCode,
		Notes:        p.Notes,
		ContactType:  p.ContactType,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("creating customer: %w", err)
	}
	s.logger.Info("customer created", zap.Int64("id", c.ID), zap.String("type", string(c.ContactType)))
	return c, nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	return s.customers.FindByID(ctx, id)
}

func (s *CustomerService) List(ctx context.Context, contactType *domain.ContactType) ([]domain.Customer, error) {
	return s.customers.List(ctx, contactType)
}
