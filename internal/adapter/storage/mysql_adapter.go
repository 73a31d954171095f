package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

var ErrStockConflict = errors.New("requested quantity exceeds available stock")

// MySQLAdapter is the authoritative cart write API. Writes are rejected when
// they exceed the recorded stock level, which is what drives the engine's
// rollback path.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema bootstraps the two tables the adapter owns.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cart_items (
			id CHAR(36) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			quantity DECIMAL(10,2) NOT NULL,
			unit VARCHAR(16) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			price DECIMAL(20,4) NOT NULL DEFAULT 0,
			reward_points DECIMAL(20,4) NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_levels (
			item_id VARCHAR(64) NOT NULL,
			quantity DECIMAL(10,2) NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (item_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) UpdateItem(ctx context.Context, line domain.CartLine, quantity float64, unit domain.MeasurementUnit, sess port.Session) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkStock(ctx, tx, line.ID, quantity); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, item_id, quantity, unit, name, price, reward_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), unit = VALUES(unit)`,
		uuid.New().String(), sess.UserID, line.ID, quantity, string(unit),
		line.Name, line.Price, line.RewardPoints,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) RemoveItem(ctx context.Context, itemID string, sess port.Session) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND item_id = ?`,
		sess.UserID, itemID,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// SaveCart replaces the user's whole cart in one transaction.
func (m *MySQLAdapter) SaveCart(ctx context.Context, lines []domain.CartLine, sess port.Session) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, sess.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	for _, line := range lines {
		if err := checkStock(ctx, tx, line.ID, line.Quantity); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, item_id, quantity, unit, name, price, reward_points)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sess.UserID, line.ID, line.Quantity, string(line.Unit),
			line.Name, line.Price, line.RewardPoints,
		)
		if err != nil {
			return fmt.Errorf("insert cart item %s: %w", line.ID, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) SetStockLevel(ctx context.Context, itemID string, quantity float64) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stock_levels (item_id, quantity) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		itemID, quantity,
	)
	return err
}

// checkStock rejects quantities above the recorded level. An item without a
// stock row is unknown and allowed; absence means "unknown", not "zero".
func checkStock(ctx context.Context, tx *sql.Tx, itemID string, quantity float64) error {
	var available float64
	err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM stock_levels WHERE item_id = ?`, itemID,
	).Scan(&available)

	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query stock level: %w", err)
	}

	if quantity > available {
		return fmt.Errorf("%w: item %s has %.2f, requested %.2f", ErrStockConflict, itemID, available, quantity)
	}
	return nil
}
