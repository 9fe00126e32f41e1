package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// ErrStockConflict is wrapped by the conflict a sale gets when the
// conditional stock update matched no row.
var ErrStockConflict = errors.New("stock conflict")

const mysqlDuplicateEntry = 1062

const productColumns = `id, barcode, name, category, price, cost, min_stock, total_stock, created_at, updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// MySQLAdapter stores the catalog and the sales. It implements both
// port.CatalogRepository and port.SaleRepository.
type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

func (m *MySQLAdapter) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	index := make(map[string]int)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	vrows, err := m.db.QueryContext(ctx, `
		SELECT product_id, size, stock FROM product_variants
		ORDER BY product_id, position, size`)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var productID string
		var v domain.Variant
		if err := vrows.Scan(&productID, &v.Size, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}

	return products, nil
}

func (m *MySQLAdapter) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return m.getProduct(ctx, m.db, `barcode = ?`, barcode)
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.getProduct(ctx, m.db, `id = ?`, id)
}

func (m *MySQLAdapter) getProduct(ctx context.Context, q queryer, where string, arg any) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	variants, err := loadVariants(ctx, q, p.ID)
	if err != nil {
		return nil, err
	}
	p.Variants = variants
	return &p, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	const op = "catalog.create"
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := m.now().UTC()
	product.CreatedAt, product.UpdatedAt = now, now

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, nullString(product.Barcode), product.Name, product.Category,
		product.Price, product.Cost, product.MinStock, nullInt(product.TotalStock),
		product.CreatedAt, product.UpdatedAt,
	)
	if isDuplicate(err) {
		return domain.Product{}, domain.Conflict(op, fmt.Sprintf("barcode %s is already in use", product.Barcode))
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}

	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return domain.Product{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}
	return product, nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	const op = "catalog.update"
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	product.UpdatedAt = m.now().UTC()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET barcode = ?, name = ?, category = ?, price = ?, cost = ?, min_stock = ?, total_stock = ?, updated_at = ?
		WHERE id = ?`,
		nullString(product.Barcode), product.Name, product.Category, product.Price, product.Cost,
		product.MinStock, nullInt(product.TotalStock), product.UpdatedAt, product.ID,
	)
	if isDuplicate(err) {
		return domain.Product{}, domain.Conflict(op, fmt.Sprintf("barcode %s is already in use", product.Barcode))
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	// MySQL reports 0 affected rows for an update that changes nothing, so
	// existence is checked separately.
	if rows, _ := result.RowsAffected(); rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, product.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFound(op, "product", product.ID)
		}
		if err != nil {
			return domain.Product{}, fmt.Errorf("check product: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = ?`, product.ID); err != nil {
		return domain.Product{}, fmt.Errorf("delete variants: %w", err)
	}
	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return domain.Product{}, err
	}

	updated, err := m.getProduct(ctx, tx, `id = ?`, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}
	return *updated, nil
}

// CreateSale takes the stock and records the sale in one transaction. The
// stock update only matches while enough stock is left, so concurrent
// terminals can never drive it negative.
func (m *MySQLAdapter) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	const op = "sale.create"

	sale := domain.Sale{
		ID:             uuid.NewString(),
		RequestID:      req.RequestID,
		ProductID:      req.ProductID,
		Size:           req.Size,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		Subtotal:       req.Subtotal,
		Discount:       req.Discount,
		DiscountAmount: req.DiscountAmount,
		TotalPrice:     req.TotalPrice,
		PaymentMethod:  req.PaymentMethod,
		CreatedAt:      m.now().UTC(),
	}
	if sale.RequestID == "" {
		sale.RequestID = sale.ID
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Stock first: the row lock it takes orders concurrent sales of the
	// same product before the sale insert checks its foreign key.
	ok, err := takeStock(ctx, tx, sale.ProductID, sale.Size, sale.Quantity)
	if err != nil {
		return domain.Sale{}, err
	}
	if !ok {
		name := sale.ProductID
		_ = tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = ?`, sale.ProductID).Scan(&name)
		return domain.Sale{}, &domain.Error{
			Code:    domain.ECONFLICT,
			Op:      op,
			Message: fmt.Sprintf("not enough stock of %s to sell %d", describe(name, sale.Size), sale.Quantity),
			Err:     ErrStockConflict,
		}
	}

	discountType, discountValue := discountColumns(sale.Discount)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, request_id, product_id, size, quantity, unit_price, subtotal,
			discount_type, discount_value, discount_amount, total_price, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.RequestID, sale.ProductID, sale.Size, sale.Quantity, sale.UnitPrice, sale.Subtotal,
		discountType, discountValue, sale.DiscountAmount, sale.TotalPrice, sale.PaymentMethod.String(), sale.CreatedAt,
	)
	if isDuplicate(err) {
		return domain.Sale{}, domain.Conflict(op, "this cart line was already sold")
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit: %w", err)
	}
	return sale, nil
}

// VoidSale deletes a sale and gives its stock back.
func (m *MySQLAdapter) VoidSale(ctx context.Context, sale domain.Sale) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var productID, size string
	var quantity int
	err = tx.QueryRowContext(ctx, `SELECT product_id, size, quantity FROM sales WHERE id = ? FOR UPDATE`, sale.ID).
		Scan(&productID, &size, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("sale.void", "sale", sale.ID)
	}
	if err != nil {
		return fmt.Errorf("query sale: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, sale.ID); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	if err := returnStock(ctx, tx, productID, size, quantity); err != nil {
		return err
	}

	return tx.Commit()
}

// ListSales returns the most recent sales, newest first.
func (m *MySQLAdapter) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, request_id, product_id, size, quantity, unit_price, subtotal,
			discount_type, discount_value, discount_amount, total_price, payment_method, created_at
		FROM sales ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		var s domain.Sale
		var discountType sql.NullString
		var discountValue decimal.NullDecimal
		var method string
		if err := rows.Scan(&s.ID, &s.RequestID, &s.ProductID, &s.Size, &s.Quantity, &s.UnitPrice, &s.Subtotal,
			&discountType, &discountValue, &s.DiscountAmount, &s.TotalPrice, &method, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if s.PaymentMethod, err = domain.ParsePaymentMethod(method); err != nil {
			return nil, fmt.Errorf("sale %s: %w", s.ID, err)
		}
		if discountType.Valid && discountValue.Valid {
			t, err := domain.ParseDiscountType(discountType.String)
			if err != nil {
				return nil, fmt.Errorf("sale %s: %w", s.ID, err)
			}
			s.Discount = &domain.Discount{Type: t, Value: discountValue.Decimal}
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func takeStock(ctx context.Context, tx *sql.Tx, productID, size string, qty int) (bool, error) {
	if size == "" {
		result, err := tx.ExecContext(ctx, `
			UPDATE products SET total_stock = total_stock - ?, updated_at = NOW(6)
			WHERE id = ? AND total_stock >= ?`,
			qty, productID, qty,
		)
		if err != nil {
			return false, fmt.Errorf("update stock: %w", err)
		}
		rows, _ := result.RowsAffected()
		return rows > 0, nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE product_variants SET stock = stock - ?
		WHERE product_id = ? AND size = ? AND stock >= ?`,
		qty, productID, size, qty,
	)
	if err != nil {
		return false, fmt.Errorf("update variant stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, nil
	}

	// Products carrying a flat total next to their variants keep it in step.
	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET total_stock = GREATEST(total_stock - ?, 0), updated_at = NOW(6)
		WHERE id = ? AND total_stock IS NOT NULL`,
		qty, productID,
	); err != nil {
		return false, fmt.Errorf("update total stock: %w", err)
	}
	return true, nil
}

func returnStock(ctx context.Context, tx *sql.Tx, productID, size string, qty int) error {
	if size != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_variants SET stock = stock + ? WHERE product_id = ? AND size = ?`,
			qty, productID, size,
		); err != nil {
			return fmt.Errorf("restore variant stock: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET total_stock = total_stock + ?, updated_at = NOW(6)
		WHERE id = ? AND total_stock IS NOT NULL`,
		qty, productID,
	); err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func loadVariants(ctx context.Context, q queryer, productID string) ([]domain.Variant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT size, stock FROM product_variants WHERE product_id = ? ORDER BY position, size`, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Size, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func insertVariants(ctx context.Context, tx *sql.Tx, productID string, variants []domain.Variant) error {
	for i, v := range variants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_variants (product_id, size, position, stock) VALUES (?, ?, ?, ?)`,
			productID, v.Size, i, v.Stock,
		); err != nil {
			return fmt.Errorf("insert variant %s: %w", v.Size, err)
		}
	}
	return nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var barcode sql.NullString
	var total sql.NullInt64
	err := row.Scan(&p.ID, &barcode, &p.Name, &p.Category, &p.Price, &p.Cost, &p.MinStock, &total, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("scan product: %w", err)
	}
	p.Barcode = barcode.String
	if total.Valid {
		p.TotalStock = domain.IntPtr(int(total.Int64))
	}
	return p, nil
}

func discountColumns(d *domain.Discount) (sql.NullString, decimal.NullDecimal) {
	if d == nil {
		return sql.NullString{}, decimal.NullDecimal{}
	}
	return sql.NullString{String: d.Type.String(), Valid: true}, decimal.NullDecimal{Decimal: d.Value, Valid: true}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func describe(name, size string) string {
	if size == "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%q size %s", name, size)
}
