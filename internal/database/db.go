// Package database stores submitted cups with jinzhu/gorm.
package database

import (
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"kiosk/internal/models"
)

// DrinkCount is one row of the monthly best sellers
type DrinkCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store persists orders
type Store struct {
	db  *gorm.DB
	now func() time.Time

	// serializes number allocation with the insert that uses it
	numberMu sync.Mutex
}

// Open connects with the given gorm dialect (sqlite3, postgres or mysql)
func Open(driver, dsn string) (*Store, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return New(db), nil
}

// New wraps an open connection
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// AutoMigrate creates or updates the orders table
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Order{}).Error
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping() error {
	return s.db.DB().Ping()
}

// CreateOrders stores one row per cup. All cups of the request share a base
// number; the second and later cups get -2, -3 and so on.
func (s *Store) CreateOrders(lines []models.OrderLine) ([]models.Order, error) {
	cups := 0
	for _, line := range lines {
		cups += max(line.Quantity, 1)
	}
	if cups == 0 {
		return nil, fmt.Errorf("no cups to store")
	}

	s.numberMu.Lock()
	defer s.numberMu.Unlock()

	now := s.now()
	prefix := now.Format("0102")
	last, err := s.LastOrderNumber(prefix)
	if err != nil {
		return nil, err
	}
	numbers := NextOrderNumbers(prefix, last, cups)

	orders := make([]models.Order, 0, cups)
	i := 0
	for _, line := range lines {
		for n := 0; n < max(line.Quantity, 1); n++ {
			orders = append(orders, models.Order{
				OrderNumber: numbers[i],
				DrinkName:   line.DrinkName,
				Size:        string(line.Size),
				Sugar:       string(line.Sugar),
				Ice:         string(line.Ice),
				Status:      string(models.OrderStatusPending),
				OrderedAt:   now,
			})
			i++
		}
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	for idx := range orders {
		if err := tx.Create(&orders[idx]).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to store order %s: %w", orders[idx].OrderNumber, err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit orders: %w", err)
	}
	return orders, nil
}

// LastOrderNumber returns the most recently stored number starting with prefix
func (s *Store) LastOrderNumber(prefix string) (string, error) {
	var order models.Order
	err := s.db.Where("order_number LIKE ?", prefix+"%").Order("id desc").First(&order).Error
	if gorm.IsRecordNotFoundError(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last order number: %w", err)
	}
	return order.OrderNumber, nil
}

// UpdateStatus sets the status of every cup of an order and returns how many
// rows changed. number may be the base number or a cup number.
func (s *Store) UpdateStatus(number string, status models.OrderStatus) (int64, error) {
	base := BaseNumber(number)
	updates := map[string]interface{}{"status": string(status)}
	if status == models.OrderStatusCompleted {
		updates["completed_at"] = s.now()
	}

	res := s.db.Model(&models.Order{}).
		Where("order_number = ? OR order_number LIKE ?", base, base+"-%").
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update order %s: %w", base, res.Error)
	}
	return res.RowsAffected, nil
}

// ListOrders returns stored cups, newest first. An empty status lists all.
func (s *Store) ListOrders(status string) ([]models.Order, error) {
	var orders []models.Order
	q := s.db.Order("id desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// TopDrinks counts cups ordered since the given time
func (s *Store) TopDrinks(since time.Time, limit int) ([]DrinkCount, error) {
	var out []DrinkCount
	err := s.db.Model(&models.Order{}).
		Select("drink_name AS name, COUNT(*) AS count").
		Where("ordered_at >= ?", since).
		Group("drink_name").
		Order("count desc").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count drinks: %w", err)
	}
	return out, nil
}

// MonthStart returns midnight of the first day of t's month
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// BaseNumber strips the cup suffix from an order number
func BaseNumber(number string) string {
	number = strings.TrimSpace(number)
	if i := strings.IndexByte(number, '-'); i >= 0 {
		return number[:i]
	}
	return number
}
