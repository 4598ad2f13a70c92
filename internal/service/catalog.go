package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
)

func (s *Service) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(category))
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("product name is required")
	}
	if p.Price.IsNegative() || p.Stock < 0 {
		return invalid("price and stock must not be negative")
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) ListPackages(ctx context.Context) ([]model.RentalPackage, error) {
	return s.repo.ListPackages(ctx)
}

func (s *Service) GetPackage(ctx context.Context, id int64) (*model.RentalPackage, error) {
	return s.repo.GetPackage(ctx, id)
}

func validatePackage(p *model.RentalPackage) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("package name is required")
	}
	if p.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	if p.Duration < 0 {
		return invalid("duration must not be negative")
	}
	if p.Duration == 0 {
		p.Duration = defaultDuration
	}
	for i := range p.Items {
		if p.Items[i].ProductID <= 0 {
			return invalid("package item product id is required")
		}
		if p.Items[i].Quantity <= 0 {
			p.Items[i].Quantity = 1
		}
	}
	return nil
}

// CreatePackage создаёт пакет аренды вместе с его позициями.
func (s *Service) CreatePackage(ctx context.Context, p *model.RentalPackage) error {
	if err := validatePackage(p); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(tx repository.Store) error {
		return tx.CreatePackage(ctx, p)
	})
}

// UpdatePackage заменяет поля и позиции пакета.
func (s *Service) UpdatePackage(ctx context.Context, p *model.RentalPackage) (*model.RentalPackage, error) {
	if err := validatePackage(p); err != nil {
		return nil, err
	}

	var res *model.RentalPackage
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdatePackage(ctx, p); err != nil {
			return err
		}
		updated, err := tx.GetPackage(ctx, p.ID)
		if err != nil {
			return err
		}
		res = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) DeletePackage(ctx context.Context, id int64) error {
	return s.repo.DeletePackage(ctx, id)
}
