package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	// pure-Go driver registered as "sqlite"
	_ "modernc.org/sqlite"
)

type userCityModel struct {
	UserID    int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	CityID    string `gorm:"column:city_id;not null"`
	UpdatedAt time.Time
}

func (userCityModel) TableName() string { return "users" }

// UsersConfig selects the database behind GormUserCities.
type UsersConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

// GormUserCities persists each user's selected city.
type GormUserCities struct {
	db *gorm.DB
}

// OpenUserCities opens the database and migrates the users table.
func OpenUserCities(cfg UsersConfig) (*GormUserCities, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Dialector{DriverName: "sqlite", DSN: cfg.DSN}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to users database: %w", err)
	}

	if cfg.Driver == "sqlite" || cfg.Driver == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if err := db.AutoMigrate(&userCityModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}
	return &GormUserCities{db: db}, nil
}

// GetCity returns the stored city id; ok is false when the user never picked one.
func (s *GormUserCities) GetCity(ctx context.Context, userID int64) (string, bool, error) {
	var m userCityModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get city for user %d: %w", userID, err)
	}
	return m.CityID, true, nil
}

// SetCity upserts the user's city.
func (s *GormUserCities) SetCity(ctx context.Context, userID int64, cityID string) error {
	m := userCityModel{UserID: userID, CityID: cityID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"city_id", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("set city for user %d: %w", userID, err)
	}
	return nil
}

func (s *GormUserCities) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MemoryUserCities is a map-backed user city store for tests and ephemeral runs.
type MemoryUserCities struct {
	mu     sync.RWMutex
	cities map[int64]string
}

func NewMemoryUserCities() *MemoryUserCities {
	return &MemoryUserCities{cities: make(map[int64]string)}
}

func (m *MemoryUserCities) GetCity(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.cities[userID]
	return id, ok, nil
}

func (m *MemoryUserCities) SetCity(_ context.Context, userID int64, cityID string) error {
	m.mu.Lock()
	m.cities[userID] = cityID
	m.mu.Unlock()
	return nil
}

func (m *MemoryUserCities) Close() error { return nil }
