package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrNotFound = fmt.Errorf("not found")
var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrRepositoryError = fmt.Errorf("could not fetch data from repository")

type Repository interface {
	GetUsers(ctx context.Context) ([]User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, user *User) error

	GetFloorplans(ctx context.Context) ([]Floorplan, error)
	GetFloorplanByID(ctx context.Context, id uint) (Floorplan, error)
	SaveFloorplan(ctx context.Context, floorplan *Floorplan) error

	GetDeviceTypes(ctx context.Context) ([]DeviceType, error)
	GetDeviceTypeByID(ctx context.Context, id uint) (DeviceType, error)
	GetDeviceTypeByName(ctx context.Context, name string) (DeviceType, error)
	SaveDeviceType(ctx context.Context, deviceType *DeviceType) error

	GetDevices(ctx context.Context) ([]Device, error)
	GetDevicesOnFloorplan(ctx context.Context, floorplanID uint) ([]Device, error)
	GetDeviceByID(ctx context.Context, id uint) (Device, error)
	GetDeviceByPathTopic(ctx context.Context, pathTopic string) (Device, error)
	SaveDevice(ctx context.Context, device *Device) error
	UpdateDevice(ctx context.Context, id uint, fields map[string]any) error
	GetLatestValues(ctx context.Context) ([]LatestValue, error)

	AddSensorInfo(ctx context.Context, info *SensorInfo) error
	GetSensorInfo(ctx context.Context, floorplanID *uint, limit int) ([]SensorInfo, error)

	Close() error
}

type repository struct {
	db  *gorm.DB
	log zerolog.Logger
}

func New(connect ConnectorFunc) (Repository, error) {
	impl, log, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&User{}, &Floorplan{}, &DeviceType{}, &Device{}, &SensorInfo{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &repository{
		db:  impl,
		log: log,
	}, nil
}

func (r *repository) GetUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	result := r.db.WithContext(ctx).Order("id").Find(&users)
	return users, r.wrap(result.Error)
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	user := User{}
	result := r.db.WithContext(ctx).Where("username = ?", username).First(&user)
	return user, r.wrap(result.Error)
}

// CreateUser inserts user. A username that is already taken, also by a concurrent
// insert, gives ErrAlreadyExists.
func (r *repository) CreateUser(ctx context.Context, user *User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}

	var count int64
	if r.db.WithContext(ctx).Model(&User{}).Where("username = ?", user.Username).Count(&count).Error == nil && count > 0 {
		return ErrAlreadyExists
	}

	return r.wrap(err)
}

func (r *repository) GetFloorplans(ctx context.Context) ([]Floorplan, error) {
	floorplans := []Floorplan{}
	result := r.db.WithContext(ctx).Order("id").Find(&floorplans)
	return floorplans, r.wrap(result.Error)
}

func (r *repository) GetFloorplanByID(ctx context.Context, id uint) (Floorplan, error) {
	floorplan := Floorplan{}
	result := r.db.WithContext(ctx).First(&floorplan, id)
	return floorplan, r.wrap(result.Error)
}

func (r *repository) SaveFloorplan(ctx context.Context, floorplan *Floorplan) error {
	return r.wrap(r.db.WithContext(ctx).Save(floorplan).Error)
}

func (r *repository) GetDeviceTypes(ctx context.Context) ([]DeviceType, error) {
	deviceTypes := []DeviceType{}
	result := r.db.WithContext(ctx).Order("id").Find(&deviceTypes)
	return deviceTypes, r.wrap(result.Error)
}

func (r *repository) GetDeviceTypeByID(ctx context.Context, id uint) (DeviceType, error) {
	deviceType := DeviceType{}
	result := r.db.WithContext(ctx).First(&deviceType, id)
	return deviceType, r.wrap(result.Error)
}

func (r *repository) GetDeviceTypeByName(ctx context.Context, name string) (DeviceType, error) {
	deviceType := DeviceType{}
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&deviceType)
	return deviceType, r.wrap(result.Error)
}

func (r *repository) SaveDeviceType(ctx context.Context, deviceType *DeviceType) error {
	return r.wrap(r.db.WithContext(ctx).Save(deviceType).Error)
}

func (r *repository) GetDevices(ctx context.Context) ([]Device, error) {
	devices := []Device{}
	result := r.db.WithContext(ctx).Order("id").Find(&devices)
	return devices, r.wrap(result.Error)
}

func (r *repository) GetDevicesOnFloorplan(ctx context.Context, floorplanID uint) ([]Device, error) {
	devices := []Device{}
	result := r.db.WithContext(ctx).Where("floorplan_id = ?", floorplanID).Order("id").Find(&devices)
	return devices, r.wrap(result.Error)
}

func (r *repository) GetDeviceByID(ctx context.Context, id uint) (Device, error) {
	device := Device{}
	result := r.db.WithContext(ctx).First(&device, id)
	return device, r.wrap(result.Error)
}

func (r *repository) GetDeviceByPathTopic(ctx context.Context, pathTopic string) (Device, error) {
	device := Device{}
	result := r.db.WithContext(ctx).Where("path_topic = ?", pathTopic).First(&device)
	return device, r.wrap(result.Error)
}

func (r *repository) SaveDevice(ctx context.Context, device *Device) error {
	tx := r.db.WithContext(ctx).Session(&gorm.Session{
		SkipDefaultTransaction: true,
	})

	return r.wrap(tx.Omit("DeviceType", "Floorplan").Save(device).Error)
}

// UpdateDevice writes the given columns on a single device. Nil values are
// written as NULL.
func (r *repository) UpdateDevice(ctx context.Context, id uint, fields map[string]any) error {
	existing := Device{}
	result := r.db.WithContext(ctx).Select("id").First(&existing, id)
	if result.Error != nil {
		return r.wrap(result.Error)
	}

	return r.wrap(r.db.WithContext(ctx).Model(&existing).Updates(fields).Error)
}

func (r *repository) GetLatestValues(ctx context.Context) ([]LatestValue, error) {
	values := []LatestValue{}
	result := r.db.WithContext(ctx).Model(&Device{}).Select("id", "latest_value").Order("id").Scan(&values)
	return values, r.wrap(result.Error)
}

func (r *repository) AddSensorInfo(ctx context.Context, info *SensorInfo) error {
	return r.wrap(r.db.WithContext(ctx).Omit("Device").Create(info).Error)
}

// GetSensorInfo returns the most recent readings, newest first. A nil floorplanID
// returns readings for all devices. A limit <= 0 returns every row.
func (r *repository) GetSensorInfo(ctx context.Context, floorplanID *uint, limit int) ([]SensorInfo, error) {
	infos := []SensorInfo{}

	query := r.db.WithContext(ctx).Model(&SensorInfo{}).Select("sensor_info.*")

	if floorplanID != nil {
		query = query.
			Joins("JOIN devices ON devices.id = sensor_info.device_id").
			Where("devices.floorplan_id = ?", *floorplanID)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Order("sensor_info.observed_at DESC").Order("sensor_info.id DESC").Find(&infos)

	return infos, r.wrap(result.Error)
}

func (r *repository) Close() error {
	sqldb, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func (r *repository) wrap(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	r.log.Error().Err(err).Msg("gorm error")

	return fmt.Errorf("%w: %s", ErrRepositoryError, err.Error())
}
