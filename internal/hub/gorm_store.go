package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DBConfig holds the database configuration.
type DBConfig struct {
	Logger   *slog.Logger
	Host     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Port     int
}

// NewDB creates a new database connection and runs migrations.
func NewDB(cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		return nil, errors.New("database config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	cfg.Logger.Info("connecting to database",
		"host", cfg.Host,
		"port", cfg.Port,
		"dbname", cfg.DBName,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // slog carries the logging
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg.Logger.Info("database connection established")

	if err := runMigrations(db, cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations for all models.
func runMigrations(db *gorm.DB, logger *slog.Logger) error {
	logger.Info("running database migrations")

	if err := db.AutoMigrate(
		&Location{},
		&Device{},
		&Readout{},
		&Alert{},
		&AverageReadout{},
		&LogEntry{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	logger.Info("database migrations completed successfully")
	return nil
}

// CloseDB closes the database connection.
func CloseDB(db *gorm.DB, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	logger.Info("closing database connection")
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// GormStore is the PostgreSQL-backed Store implementation.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open GORM handle in a Store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	return &GormStore{db: db}, nil
}

var _ Store = (*GormStore)(nil)

// DeviceByID loads a device with its location populated.
func (s *GormStore) DeviceByID(ctx context.Context, id uint) (*Device, error) {
	var device Device
	if err := s.db.WithContext(ctx).Preload("Location").First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("device %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch device %d: %w", id, err)
	}
	return &device, nil
}

// DeviceByMAC loads a device by hardware address.
func (s *GormStore) DeviceByMAC(ctx context.Context, mac string) (*Device, error) {
	var device Device
	if err := s.db.WithContext(ctx).Preload("Location").Where("mac = ?", mac).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("device %s: %w", mac, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch device %s: %w", mac, err)
	}
	return &device, nil
}

// CreateDevice persists a new device row.
func (s *GormStore) CreateDevice(ctx context.Context, device *Device) error {
	if err := s.db.WithContext(ctx).Create(device).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// SaveDevice persists all fields of an existing device row.
func (s *GormStore) SaveDevice(ctx context.Context, device *Device) error {
	if err := s.db.WithContext(ctx).Omit("Location").Save(device).Error; err != nil {
		return fmt.Errorf("failed to save device %d: %w", device.ID, err)
	}
	return nil
}

// LocatedDevices returns all devices with a location assigned.
func (s *GormStore) LocatedDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := s.db.WithContext(ctx).Preload("Location").Where("location_id IS NOT NULL").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch located devices: %w", err)
	}
	return devices, nil
}

// CreateReadout persists an immutable readout row.
func (s *GormStore) CreateReadout(ctx context.Context, readout *Readout) error {
	if err := s.db.WithContext(ctx).Create(readout).Error; err != nil {
		return fmt.Errorf("failed to create readout: %w", err)
	}
	return nil
}

// LatestReadout returns the newest temperature-bearing readout for a location.
func (s *GormStore) LatestReadout(ctx context.Context, locationID uint) (*Readout, error) {
	var readout Readout
	err := s.db.WithContext(ctx).
		Where("location_id = ? AND temp IS NOT NULL", locationID).
		Order("timestamp DESC").
		First(&readout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("readout for location %d: %w", locationID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch latest readout: %w", err)
	}
	return &readout, nil
}

// ReadoutsForDay returns temperature-bearing readouts for one device within
// [dayStart, dayStart+24h), oldest first.
func (s *GormStore) ReadoutsForDay(ctx context.Context, deviceID uint, dayStart time.Time) ([]Readout, error) {
	var readouts []Readout
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND temp IS NOT NULL AND timestamp >= ? AND timestamp < ?",
			deviceID, dayStart, dayStart.Add(24*time.Hour)).
		Order("timestamp ASC").
		Find(&readouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readouts for day: %w", err)
	}
	return readouts, nil
}

// ReadoutsByLocation returns temperature-bearing readouts for a location
// within [from, to], oldest first.
func (s *GormStore) ReadoutsByLocation(ctx context.Context, locationID uint, from, to time.Time) ([]Readout, error) {
	var readouts []Readout
	err := s.db.WithContext(ctx).
		Where("location_id = ? AND temp IS NOT NULL AND timestamp BETWEEN ? AND ?", locationID, from, to).
		Order("timestamp ASC").
		Find(&readouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readouts by location: %w", err)
	}
	return readouts, nil
}

// ReadoutsByDevice returns all readouts for a device within [from, to],
// oldest first.
func (s *GormStore) ReadoutsByDevice(ctx context.Context, deviceID uint, from, to time.Time) ([]Readout, error) {
	var readouts []Readout
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND timestamp BETWEEN ? AND ?", deviceID, from, to).
		Order("timestamp ASC").
		Find(&readouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readouts by device: %w", err)
	}
	return readouts, nil
}

// CountReadoutsByLocation counts temperature-bearing readouts in a range.
func (s *GormStore) CountReadoutsByLocation(ctx context.Context, locationID uint, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Readout{}).
		Where("location_id = ? AND temp IS NOT NULL AND timestamp BETWEEN ? AND ?", locationID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count readouts by location: %w", err)
	}
	return count, nil
}

// CountReadoutsByDevice counts readouts for a device in a range.
func (s *GormStore) CountReadoutsByDevice(ctx context.Context, deviceID uint, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Readout{}).
		Where("device_id = ? AND timestamp BETWEEN ? AND ?", deviceID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count readouts by device: %w", err)
	}
	return count, nil
}

// FindOrCreateAlert atomically finds or creates the open alert for a
// (location, type) key. The unique index on (location_id, type) backs the
// invariant; a lost insert race falls back to loading the winner, so the
// caller can always branch on created without a race window.
func (s *GormStore) FindOrCreateAlert(ctx context.Context, locationID uint, typ AlertType, critical bool) (*Alert, bool, error) {
	var alert Alert
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("location_id = ? AND type = ?", locationID, typ).
			First(&alert).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		alert = Alert{
			LocationID: &locationID,
			Type:       typ,
			Critical:   critical,
			Counter:    1,
			Timestamp:  time.Now().UTC(),
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "location_id"}, {Name: "type"}},
			DoNothing: true,
		}).Create(&alert).Error
		if err != nil {
			return err
		}
		if alert.ID == 0 {
			// Lost the insert race; load the row the other writer created.
			return tx.Where("location_id = ? AND type = ?", locationID, typ).First(&alert).Error
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to find or create alert: %w", err)
	}
	return &alert, created, nil
}

// SaveAlert persists all fields of an existing alert row.
func (s *GormStore) SaveAlert(ctx context.Context, alert *Alert) error {
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return fmt.Errorf("failed to save alert %d: %w", alert.ID, err)
	}
	return nil
}

// AlertByID loads a single alert.
func (s *GormStore) AlertByID(ctx context.Context, id uint) (*Alert, error) {
	var alert Alert
	if err := s.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("alert %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch alert %d: %w", id, err)
	}
	return &alert, nil
}

// DeleteAlerts removes open alerts of the given types for a location.
func (s *GormStore) DeleteAlerts(ctx context.Context, locationID uint, types ...AlertType) error {
	if len(types) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("location_id = ? AND type IN ?", locationID, types).
		Delete(&Alert{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

// DeleteAlertsBefore removes alerts last updated before the cutoff.
func (s *GormStore) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&Alert{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stale alerts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// HasAverageReadout reports whether a daily aggregate exists for (device, day).
func (s *GormStore) HasAverageReadout(ctx context.Context, deviceID uint, dayStart time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AverageReadout{}).
		Where("device_id = ? AND timestamp = ?", deviceID, dayStart).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check average readout: %w", err)
	}
	return count > 0, nil
}

// CreateAverageReadout persists one daily aggregate row. The unique index
// on (device_id, timestamp) keeps aggregation idempotent even if two sweeps
// race; a duplicate insert is ignored.
func (s *GormStore) CreateAverageReadout(ctx context.Context, avg *AverageReadout) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "timestamp"}},
		DoNothing: true,
	}).Create(avg).Error
	if err != nil {
		return fmt.Errorf("failed to create average readout: %w", err)
	}
	return nil
}

// AveragesByLocation returns daily aggregates for a location within
// [from, to]. Aggregates without a temperature carry only charge data and
// are excluded, matching the raw-readout queries.
func (s *GormStore) AveragesByLocation(ctx context.Context, locationID uint, from, to time.Time) ([]AverageReadout, error) {
	var averages []AverageReadout
	err := s.db.WithContext(ctx).
		Where("location_id = ? AND temp IS NOT NULL AND timestamp BETWEEN ? AND ?", locationID, from, to).
		Order("timestamp ASC").
		Find(&averages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch averages by location: %w", err)
	}
	return averages, nil
}

// AveragesByDevice returns daily aggregates for a device within [from, to].
func (s *GormStore) AveragesByDevice(ctx context.Context, deviceID uint, from, to time.Time) ([]AverageReadout, error) {
	var averages []AverageReadout
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND timestamp BETWEEN ? AND ?", deviceID, from, to).
		Order("timestamp ASC").
		Find(&averages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch averages by device: %w", err)
	}
	return averages, nil
}

// AppendLog appends one audit-trail row.
func (s *GormStore) AppendLog(ctx context.Context, typ LogType, tag, message string) error {
	entry := &LogEntry{Type: typ, Tag: tag, Message: message}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}
