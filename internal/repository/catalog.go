package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentalhub/internal/model"
)

const productColumns = `id, name, description, category, image_url, price, stock, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts возвращает товары каталога, при непустом category — только этой категории.
func (r *PostgresRepository) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE $1 = '' OR category = $1
		 ORDER BY created_at DESC`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateProduct добавляет товар в каталог.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO products (name, description, category, image_url, price, stock)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		p.Name, p.Description, p.Category, p.ImageURL, p.Price, p.Stock,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetPackage возвращает пакет аренды вместе с входящими в него товарами.
func (r *PostgresRepository) GetPackage(ctx context.Context, id int64) (*model.RentalPackage, error) {
	var p model.RentalPackage
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, image_url, price, duration, created_at
		 FROM rental_packages WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Duration, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}

	items, err := r.packageItems(ctx, []int64{p.ID})
	if err != nil {
		return nil, err
	}
	p.Items = items[p.ID]

	return &p, nil
}

// ListPackages возвращает все пакеты аренды, новые первыми.
func (r *PostgresRepository) ListPackages(ctx context.Context) ([]model.RentalPackage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, image_url, price, duration, created_at
		 FROM rental_packages ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select packages: %w", err)
	}
	defer rows.Close()

	var (
		res []model.RentalPackage
		ids []int64
	)
	for rows.Next() {
		var p model.RentalPackage
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Duration, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		res = append(res, p)
		ids = append(ids, p.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return res, nil
	}

	items, err := r.packageItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Items = items[res[i].ID]
	}

	return res, nil
}

func (r *PostgresRepository) packageItems(ctx context.Context, packageIDs []int64) (map[int64][]model.PackageItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT i.id, i.package_id, i.product_id, p.name, i.quantity
		 FROM rental_package_items i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.package_id = ANY($1)
		 ORDER BY i.id`,
		packageIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select package items: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.PackageItem, len(packageIDs))
	for rows.Next() {
		var (
			item      model.PackageItem
			packageID int64
		)
		if err := rows.Scan(&item.ID, &packageID, &item.ProductID, &item.ProductName, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan package item: %w", err)
		}
		res[packageID] = append(res[packageID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreatePackage создаёт пакет и его позиции. Атомарность обеспечивает вызывающая сторона через WithTx.
func (r *PostgresRepository) CreatePackage(ctx context.Context, p *model.RentalPackage) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO rental_packages (name, description, image_url, price, duration)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		p.Name, p.Description, p.ImageURL, p.Price, p.Duration,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create package: %w", err)
	}

	return r.insertPackageItems(ctx, p)
}

// UpdatePackage заменяет поля пакета и полностью перезаписывает список его позиций.
func (r *PostgresRepository) UpdatePackage(ctx context.Context, p *model.RentalPackage) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rental_packages
		 SET name = $2, description = $3, image_url = $4, price = $5, duration = $6
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.ImageURL, p.Price, p.Duration,
	)
	if err != nil {
		return fmt.Errorf("update package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPackageNotFound
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM rental_package_items WHERE package_id = $1`, p.ID); err != nil {
		return fmt.Errorf("delete package items: %w", err)
	}

	return r.insertPackageItems(ctx, p)
}

func (r *PostgresRepository) insertPackageItems(ctx context.Context, p *model.RentalPackage) error {
	for i := range p.Items {
		item := &p.Items[i]
		err := r.db.QueryRow(ctx,
			`INSERT INTO rental_package_items (package_id, product_id, quantity)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			p.ID, item.ProductID, item.Quantity,
		).Scan(&item.ID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
			}
			return fmt.Errorf("insert package item: %w", err)
		}
	}
	return nil
}

// DeletePackage удаляет пакет аренды.
func (r *PostgresRepository) DeletePackage(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rental_packages WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrPackageInUse
		}
		return fmt.Errorf("delete package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}
