package ledgerrepo

import (
	"context"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/db"
)

type dbRepo struct {
	conn core.Conn
}

func NewPostgresRepo(conn core.Conn) ledger.Repository {
	return &dbRepo{
		conn: conn,
	}
}

const selectLedger = `
	SELECT id, kind, owner_id, product_id, lot_number, quantity_unit,
	       total_quantity, available_quantity, reserved_quantity, sold_quantity, damaged_quantity,
	       min_stock_level, max_stock_level, reorder_quantity, cost_per_unit,
	       expiry_date, quality_grade, harvest_date,
	       status, version, created_by, created_at, updated_by, updated_at, deleted
	  FROM ledgers`

func scanLedger(row pgx.Row, l *ledger.Ledger) error {
	return row.Scan(
		&l.ID, &l.Kind, &l.OwnerID, &l.ProductID, &l.LotNumber, &l.QuantityUnit,
		&l.Total, &l.Available, &l.Reserved, &l.Sold, &l.Damaged,
		&l.MinStockLevel, &l.MaxStockLevel, &l.ReorderQuantity, &l.CostPerUnit,
		&l.ExpiryDate, &l.QualityGrade, &l.HarvestDate,
		&l.Status, &l.Version, &l.CreatedBy, &l.CreatedAt, &l.UpdatedBy, &l.UpdatedAt, &l.Deleted,
	)
}

func (d *dbRepo) FindByID(ctx context.Context, id string) (ledger.Ledger, error) {
	m := db.StartMetric("FindLedgerByID")

	l := ledger.Ledger{}
	err := scanLedger(d.conn.QueryRow(ctx, selectLedger+` WHERE id = $1`, id), &l)
	if err != nil {
		m.Complete(err)
		if err == pgx.ErrNoRows {
			return l, errors.WithStack(core.ErrNotFound)
		}
		return l, errors.WithStack(err)
	}

	m.Complete(nil)
	return l, nil
}

func (d *dbRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]ledger.Ledger, error) {
	m := db.StartMetric("ListLedgersByOwner")

	ledgers := make([]ledger.Ledger, 0)
	rows, err := d.conn.Query(ctx,
		selectLedger+` WHERE owner_id = $1 AND deleted = FALSE ORDER BY product_id, lot_number LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		m.Complete(err)
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	for rows.Next() {
		l := ledger.Ledger{}
		if err = scanLedger(rows, &l); err != nil {
			m.Complete(err)
			return nil, errors.WithStack(err)
		}
		ledgers = append(ledgers, l)
	}
	if err = rows.Err(); err != nil {
		m.Complete(err)
		return nil, errors.WithStack(err)
	}

	m.Complete(nil)
	return ledgers, nil
}

const uniqueViolation = "23505"

func (d *dbRepo) Insert(ctx context.Context, l *ledger.Ledger) error {
	m := db.StartMetric("InsertLedger")

	insert := `INSERT INTO ledgers (kind, owner_id, product_id, lot_number, quantity_unit,
	                                total_quantity, available_quantity, reserved_quantity, sold_quantity, damaged_quantity,
	                                min_stock_level, max_stock_level, reorder_quantity, cost_per_unit,
	                                expiry_date, quality_grade, harvest_date,
	                                status, version, created_by, created_at, updated_by, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $20, $21, $22)
	             RETURNING id, version;`

	err := d.conn.QueryRow(ctx, insert,
		l.Kind, l.OwnerID, l.ProductID, l.LotNumber, l.QuantityUnit,
		l.Total, l.Available, l.Reserved, l.Sold, l.Damaged,
		l.MinStockLevel, l.MaxStockLevel, l.ReorderQuantity, l.CostPerUnit,
		l.ExpiryDate, l.QualityGrade, l.HarvestDate,
		l.Status, l.CreatedBy, l.CreatedAt, l.UpdatedBy, l.UpdatedAt,
	).Scan(&l.ID, &l.Version)
	if err != nil {
		m.Complete(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Wrapf(ledger.ErrLedgerExists, "product %s lot %q", l.ProductID, l.LotNumber)
		}
		return errors.WithStack(err)
	}

	m.Complete(nil)
	return nil
}

// ApplyDelta writes the new buckets only if the row is still at the version, and still holds the
// available and reserved quantities, that the caller checked. The guard and the write are one statement,
// so two callers can never both pass the same check.
func (d *dbRepo) ApplyDelta(ctx context.Context, c ledger.Change) (bool, error) {
	m := db.StartMetric("ApplyLedgerDelta")

	update := `
		UPDATE ledgers
		   SET total_quantity = $3, available_quantity = $4, reserved_quantity = $5,
		       sold_quantity = $6, damaged_quantity = $7, status = $8,
		       updated_by = $9, updated_at = $10, version = version + 1
		 WHERE id = $1 AND version = $2 AND deleted = FALSE
		   AND available_quantity = $11 AND reserved_quantity = $12;`

	ct, err := d.conn.Exec(ctx, update,
		c.LedgerID, c.Version,
		c.After.Total, c.After.Available, c.After.Reserved, c.After.Sold, c.After.Damaged, c.Status,
		c.UpdatedBy, c.UpdatedAt,
		c.Expected.Available, c.Expected.Reserved)
	m.Complete(err)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (d *dbRepo) SoftDelete(ctx context.Context, id string, version int64, actorID string, at time.Time) (bool, error) {
	m := db.StartMetric("SoftDeleteLedger")

	update := `
		UPDATE ledgers
		   SET deleted = TRUE, updated_by = $3, updated_at = $4, version = version + 1
		 WHERE id = $1 AND version = $2 AND deleted = FALSE;`

	ct, err := d.conn.Exec(ctx, update, id, version, actorID, at)
	m.Complete(err)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return ct.RowsAffected() == 1, nil
}
