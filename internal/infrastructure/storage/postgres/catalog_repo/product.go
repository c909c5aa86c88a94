// Package catalog_repo provides the PostgreSQL product catalog.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/product"
	"pharmastock/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

const sqlStateUniqueViolation = "23505"

var _ product.Repository = (*ProductRepo)(nil)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[product.Product](),
	}
}

// Create inserts a new product using its "db" tags.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.Insert(productsTable).
		SetMap(postgres.StructToMap(p)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return mapWriteError(p, err)
	}
	return nil
}

// Update rewrites the descriptive fields of a product.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	data := postgres.StructToMap(p)
	delete(data, "id")
	delete(data, "created_at")

	sql, args, err := r.builder.Update(productsTable).
		SetMap(data).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapWriteError(p, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewProductNotFound(p.ID)
	}
	return nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := r.findOne(ctx, squirrel.Eq{"id": productID})
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewProductNotFound(productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// FindByBarcode retrieves a product by barcode.
func (r *ProductRepo) FindByBarcode(ctx context.Context, barcode string) (*product.Product, error) {
	p, err := r.findOne(ctx, squirrel.Eq{"barcode": barcode})
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", barcode)
		}
		return nil, fmt.Errorf("find product by barcode: %w", err)
	}
	return p, nil
}

// Exists checks if a product exists.
func (r *ProductRepo) Exists(ctx context.Context, productID id.ID) (bool, error) {
	sql, args, err := r.builder.Select("1").
		Prefix("SELECT EXISTS (").
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var exists bool
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return exists, nil
}

// List retrieves a page of products ordered by name, with the total count.
func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, int, error) {
	q := r.listQuery(filter.Search)
	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	q = q.OrderBy("name", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	items := make([]*product.Product, 0)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return items, total, nil
}

// ListAll returns every product ordered by name.
func (r *ProductRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	sql, args, err := r.listQuery("").OrderBy("name", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]*product.Product, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

func (r *ProductRepo) listQuery(search string) squirrel.SelectBuilder {
	q := r.builder.Select(r.selectCols...).From(productsTable)
	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"company": pattern},
			squirrel.ILike{"barcode": pattern},
		})
	}
	return q
}

func (r *ProductRepo) findOne(ctx context.Context, where squirrel.Eq) (*product.Product, error) {
	sql, args, err := r.builder.Select(r.selectCols...).
		From(productsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		return nil, err
	}
	return &p, nil
}

func mapWriteError(p *product.Product, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
		value := ""
		if p.Barcode != nil {
			value = *p.Barcode
		}
		return apperror.NewDuplicate("product", "barcode", value).WithCause(err)
	}
	return fmt.Errorf("write %s: %w", productsTable, err)
}
