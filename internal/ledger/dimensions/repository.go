package dimensions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Repository is the scoped store for dimensions and their values.
type Repository interface {
	CreateDimension(ctx context.Context, d Dimension) (Dimension, error)
	CreateValue(ctx context.Context, v Value) (Value, error)
	GetValue(ctx context.Context, id uuid.UUID) (Value, error)
	ListDimensions(ctx context.Context) ([]Dimension, error)
	ListValues(ctx context.Context, dimensionID uuid.UUID) ([]Value, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the scoped repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateDimension(ctx context.Context, d Dimension) (Dimension, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Dimension{}, err
	}
	if !d.Type.Valid() {
		return Dimension{}, fmt.Errorf("%w: unknown dimension type %q", shared.ErrInvalidStatus, d.Type)
	}
	d.ID = uuid.New()
	d.CompanyID = companyID
	err = r.pool.QueryRow(ctx, `INSERT INTO dimensions (id, company_id, type, code, name)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		d.ID, d.CompanyID, d.Type, d.Code, d.Name).Scan(&d.CreatedAt)
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: create dimension: %v", shared.ErrStorage, err)
	}
	return d, nil
}

func (r *repository) CreateValue(ctx context.Context, v Value) (Value, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Value{}, err
	}
	// The parent dimension must be in scope.
	var ok bool
	err = r.pool.QueryRow(ctx, `SELECT TRUE FROM dimensions WHERE id=$1 AND company_id=$2`, v.DimensionID, companyID).Scan(&ok)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Value{}, shared.ErrNotFound
		}
		return Value{}, fmt.Errorf("%w: check dimension: %v", shared.ErrStorage, err)
	}
	v.ID = uuid.New()
	v.CompanyID = companyID
	err = r.pool.QueryRow(ctx, `INSERT INTO dimension_values (id, company_id, dimension_id, code, name)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		v.ID, v.CompanyID, v.DimensionID, v.Code, v.Name).Scan(&v.CreatedAt)
	if err != nil {
		return Value{}, fmt.Errorf("%w: create dimension value: %v", shared.ErrStorage, err)
	}
	return v, nil
}

func (r *repository) GetValue(ctx context.Context, id uuid.UUID) (Value, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Value{}, err
	}
	var v Value
	err = r.pool.QueryRow(ctx, `SELECT id, company_id, dimension_id, code, name, created_at
		FROM dimension_values WHERE id=$1 AND company_id=$2`, id, companyID).
		Scan(&v.ID, &v.CompanyID, &v.DimensionID, &v.Code, &v.Name, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Value{}, shared.ErrNotFound
		}
		return Value{}, fmt.Errorf("%w: get dimension value: %v", shared.ErrStorage, err)
	}
	return v, nil
}

func (r *repository) ListDimensions(ctx context.Context) ([]Dimension, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, type, code, name, created_at
		FROM dimensions WHERE company_id=$1 ORDER BY type, code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list dimensions: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Dimension
	for rows.Next() {
		var d Dimension
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Type, &d.Code, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) ListValues(ctx context.Context, dimensionID uuid.UUID) ([]Value, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, dimension_id, code, name, created_at
		FROM dimension_values WHERE dimension_id=$1 AND company_id=$2 ORDER BY code`, dimensionID, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list dimension values: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.ID, &v.CompanyID, &v.DimensionID, &v.Code, &v.Name, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
