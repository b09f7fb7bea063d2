package facility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/space-monitor/internal/pkg/application/alerts"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/metrics"
	db "github.com/diwise/space-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/space-monitor/pkg/placement"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/go-chi/jwtauth/v5"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const passwordCost int = 10
const tokenLifetime time.Duration = time.Hour

type Facility interface {
	GetUsers(ctx context.Context) ([]types.User, error)
	Register(ctx context.Context, credentials types.Credentials) (types.User, error)
	Login(ctx context.Context, credentials types.Credentials) (types.Token, error)

	GetFloorplans(ctx context.Context) ([]types.Floorplan, error)
	GetFloorplan(ctx context.Context, id uint) (types.Floorplan, error)
	CreateFloorplan(ctx context.Context, floorplan types.Floorplan) (types.Floorplan, error)
	UpdateFloorplan(ctx context.Context, id uint, floorplan types.Floorplan) (types.Floorplan, error)
	GetFloorplanDevices(ctx context.Context, floorplanID uint) ([]types.Device, error)

	GetDeviceTypes(ctx context.Context) ([]types.DeviceType, error)
	GetDevices(ctx context.Context) ([]types.Device, error)
	GetDevice(ctx context.Context, id uint) (types.Device, error)
	CreateDevice(ctx context.Context, device types.NewDevice) (types.Device, error)
	MoveDevice(ctx context.Context, id uint, location types.DeviceLocation) (types.Device, error)
	DragDevice(ctx context.Context, id uint, drag types.DeviceDrag) (types.Device, error)

	LatestValues(ctx context.Context) ([]types.LatestValue, error)
	GetSensorInfo(ctx context.Context, floorplanID *uint, limit int) ([]types.SensorInfo, error)
	RecordReading(ctx context.Context, reading types.Reading, source string) (types.Device, error)
}

type facility struct {
	repo     db.Repository
	notifier alerts.Notifier
	tokens   *jwtauth.JWTAuth
}

func New(repo db.Repository, notifier alerts.Notifier, tokens *jwtauth.JWTAuth) Facility {
	return &facility{
		repo:     repo,
		notifier: notifier,
		tokens:   tokens,
	}
}

func (f *facility) GetUsers(ctx context.Context) ([]types.User, error) {
	users, err := f.repo.GetUsers(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	return lo.Map(users, func(u db.User, _ int) types.User {
		return toUser(u)
	}), nil
}

func (f *facility) Register(ctx context.Context, credentials types.Credentials) (types.User, error) {
	if credentials.Username == "" || credentials.Password == "" {
		return types.User{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	_, err := f.repo.GetUserByUsername(ctx, credentials.Username)
	if err == nil {
		return types.User{}, ErrUserExists
	}
	if !errors.Is(err, db.ErrNotFound) {
		return types.User{}, mapErr(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credentials.Password), passwordCost)
	if err != nil {
		return types.User{}, err
	}

	user := db.User{
		Username: credentials.Username,
		Password: string(hash),
	}

	if err = f.repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return types.User{}, ErrUserExists
		}
		return types.User{}, mapErr(err)
	}

	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Str("username", user.Username).Msg("user registered")

	return toUser(user), nil
}

func (f *facility) Login(ctx context.Context, credentials types.Credentials) (types.Token, error) {
	if credentials.Username == "" || credentials.Password == "" {
		return types.Token{}, ErrInvalidCredentials
	}

	user, err := f.repo.GetUserByUsername(ctx, credentials.Username)
	if errors.Is(err, db.ErrNotFound) {
		return types.Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return types.Token{}, mapErr(err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(credentials.Password)); err != nil {
		return types.Token{}, ErrInvalidCredentials
	}

	claims := map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, tokenLifetime)

	_, token, err := f.tokens.Encode(claims)
	if err != nil {
		return types.Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return types.Token{Token: token}, nil
}

func (f *facility) GetFloorplans(ctx context.Context) ([]types.Floorplan, error) {
	floorplans, err := f.repo.GetFloorplans(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	return lo.Map(floorplans, func(fp db.Floorplan, _ int) types.Floorplan {
		return toFloorplan(fp)
	}), nil
}

func (f *facility) GetFloorplan(ctx context.Context, id uint) (types.Floorplan, error) {
	fp, err := f.repo.GetFloorplanByID(ctx, id)
	if err != nil {
		return types.Floorplan{}, mapErr(err)
	}
	return toFloorplan(fp), nil
}

func (f *facility) CreateFloorplan(ctx context.Context, floorplan types.Floorplan) (types.Floorplan, error) {
	if floorplan.Name == "" {
		return types.Floorplan{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	fp := db.Floorplan{
		Name:        floorplan.Name,
		ImageURL:    floorplan.ImageURL,
		Description: floorplan.Description,
	}

	if err := f.repo.SaveFloorplan(ctx, &fp); err != nil {
		return types.Floorplan{}, mapErr(err)
	}

	return toFloorplan(fp), nil
}

func (f *facility) UpdateFloorplan(ctx context.Context, id uint, floorplan types.Floorplan) (types.Floorplan, error) {
	if floorplan.Name == "" {
		return types.Floorplan{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	fp, err := f.repo.GetFloorplanByID(ctx, id)
	if err != nil {
		return types.Floorplan{}, mapErr(err)
	}

	fp.Name = floorplan.Name
	fp.ImageURL = floorplan.ImageURL
	fp.Description = floorplan.Description

	if err = f.repo.SaveFloorplan(ctx, &fp); err != nil {
		return types.Floorplan{}, mapErr(err)
	}

	return toFloorplan(fp), nil
}

func (f *facility) GetFloorplanDevices(ctx context.Context, floorplanID uint) ([]types.Device, error) {
	if _, err := f.repo.GetFloorplanByID(ctx, floorplanID); err != nil {
		return nil, mapErr(err)
	}

	devices, err := f.repo.GetDevicesOnFloorplan(ctx, floorplanID)
	if err != nil {
		return nil, mapErr(err)
	}

	return toDevices(devices), nil
}

func (f *facility) GetDeviceTypes(ctx context.Context) ([]types.DeviceType, error) {
	deviceTypes, err := f.repo.GetDeviceTypes(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	return lo.Map(deviceTypes, func(dt db.DeviceType, _ int) types.DeviceType {
		return toDeviceType(dt)
	}), nil
}

func (f *facility) GetDevices(ctx context.Context) ([]types.Device, error) {
	devices, err := f.repo.GetDevices(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	return toDevices(devices), nil
}

func (f *facility) GetDevice(ctx context.Context, id uint) (types.Device, error) {
	d, err := f.repo.GetDeviceByID(ctx, id)
	if err != nil {
		return types.Device{}, mapErr(err)
	}
	return toDevice(d), nil
}

func (f *facility) CreateDevice(ctx context.Context, device types.NewDevice) (types.Device, error) {
	if device.Name == "" {
		return types.Device{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if device.MinAlert != nil && device.MaxAlert != nil && *device.MinAlert > *device.MaxAlert {
		return types.Device{}, fmt.Errorf("%w: min_alert must not exceed max_alert", ErrInvalidInput)
	}

	if _, err := f.repo.GetDeviceTypeByID(ctx, device.DeviceTypeID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return types.Device{}, fmt.Errorf("%w: unknown device type %d", ErrInvalidInput, device.DeviceTypeID)
		}
		return types.Device{}, mapErr(err)
	}

	floorplanID, err := f.resolveFloorplan(ctx, device.FloorplanID)
	if err != nil {
		return types.Device{}, err
	}

	pos := placement.Clamp(placement.Position{X: device.XPercent, Y: device.YPercent})

	d := db.Device{
		Name:         device.Name,
		DeviceTypeID: device.DeviceTypeID,
		FloorplanID:  floorplanID,
		PathTopic:    device.PathTopic,
		MinAlert:     device.MinAlert,
		MaxAlert:     device.MaxAlert,
		XPercent:     pos.X,
		YPercent:     pos.Y,
	}

	if err = f.repo.SaveDevice(ctx, &d); err != nil {
		return types.Device{}, mapErr(err)
	}

	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Uint("device_id", d.ID).Str("name", d.Name).Msg("device created")

	return toDevice(d), nil
}

// MoveDevice assigns a device to a floor plan, or removes it from one when the
// floor plan id is nil or zero. Positions are clamped into the unit square.
func (f *facility) MoveDevice(ctx context.Context, id uint, location types.DeviceLocation) (types.Device, error) {
	d, err := f.repo.GetDeviceByID(ctx, id)
	if err != nil {
		return types.Device{}, mapErr(err)
	}

	floorplanID, err := f.resolveFloorplan(ctx, location.FloorplanID)
	if err != nil {
		return types.Device{}, err
	}

	pos := toDevice(d).Position()
	if location.XPercent != nil {
		pos.X = *location.XPercent
	}
	if location.YPercent != nil {
		pos.Y = *location.YPercent
	}
	pos = placement.Clamp(pos)

	err = f.repo.UpdateDevice(ctx, id, map[string]any{
		"floorplan_id": floorplanID,
		"x_percent":    pos.X,
		"y_percent":    pos.Y,
	})
	if err != nil {
		return types.Device{}, mapErr(err)
	}

	return f.GetDevice(ctx, id)
}

// DragDevice applies a pixel delta, measured on a rendered floor plan of the given
// size, to the stored position of a device.
func (f *facility) DragDevice(ctx context.Context, id uint, drag types.DeviceDrag) (types.Device, error) {
	if drag.ContainerWidth <= 0 || drag.ContainerHeight <= 0 {
		return types.Device{}, fmt.Errorf("%w: container size must be positive", ErrInvalidInput)
	}

	d, err := f.repo.GetDeviceByID(ctx, id)
	if err != nil {
		return types.Device{}, mapErr(err)
	}

	container := placement.Size{Width: drag.ContainerWidth, Height: drag.ContainerHeight}
	pos := placement.Reproject(toDevice(d).Position(), placement.Point{X: drag.DeltaX, Y: drag.DeltaY}, container)

	err = f.repo.UpdateDevice(ctx, id, map[string]any{
		"x_percent": pos.X,
		"y_percent": pos.Y,
	})
	if err != nil {
		return types.Device{}, mapErr(err)
	}

	return f.GetDevice(ctx, id)
}

func (f *facility) LatestValues(ctx context.Context) ([]types.LatestValue, error) {
	values, err := f.repo.GetLatestValues(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	return lo.Map(values, func(v db.LatestValue, _ int) types.LatestValue {
		return types.LatestValue{ID: v.ID, LatestValue: v.LatestValue}
	}), nil
}

func (f *facility) GetSensorInfo(ctx context.Context, floorplanID *uint, limit int) ([]types.SensorInfo, error) {
	infos, err := f.repo.GetSensorInfo(ctx, floorplanID, limit)
	if err != nil {
		return nil, mapErr(err)
	}

	return lo.Map(infos, func(si db.SensorInfo, _ int) types.SensorInfo {
		return types.SensorInfo{ID: si.ID, DeviceID: si.DeviceID, Value: si.Value, ObservedAt: si.ObservedAt}
	}), nil
}

// RecordReading stores value as the latest value of the addressed device, appends
// it to the sensor history and raises an alert if it is outside the device thresholds.
func (f *facility) RecordReading(ctx context.Context, reading types.Reading, source string) (types.Device, error) {
	var d db.Device
	var err error

	switch {
	case reading.DeviceID != 0:
		d, err = f.repo.GetDeviceByID(ctx, reading.DeviceID)
	case reading.PathTopic != "":
		d, err = f.repo.GetDeviceByPathTopic(ctx, reading.PathTopic)
	default:
		return types.Device{}, fmt.Errorf("%w: reading must address a device", ErrInvalidInput)
	}

	if err != nil {
		return types.Device{}, mapErr(err)
	}

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	value := reading.Value
	if err = f.repo.UpdateDevice(ctx, d.ID, map[string]any{"latest_value": value}); err != nil {
		return types.Device{}, mapErr(err)
	}
	d.LatestValue = &value

	err = f.repo.AddSensorInfo(ctx, &db.SensorInfo{DeviceID: d.ID, Value: value, ObservedAt: ts})
	if err != nil {
		return types.Device{}, mapErr(err)
	}

	metrics.ReadingsRecorded.WithLabelValues(source).Inc()

	device := toDevice(d)

	if kind, raised := alerts.Evaluate(device, value); raised && f.notifier != nil {
		alert := types.AlertRaised{
			DeviceID:   d.ID,
			DeviceName: d.Name,
			Kind:       kind,
			Value:      value,
			MinAlert:   d.MinAlert,
			MaxAlert:   d.MaxAlert,
			Timestamp:  ts,
		}

		if d.FloorplanID != nil {
			if fp, err := f.repo.GetFloorplanByID(ctx, *d.FloorplanID); err == nil {
				alert.FloorplanName = fp.Name
			}
		}

		if err := f.notifier.Notify(ctx, alert); err != nil {
			logger := logging.GetLoggerFromContext(ctx)
			logger.Warn().Err(err).Uint("device_id", d.ID).Msg("failed to deliver alert")
		}
	}

	return device, nil
}

func (f *facility) resolveFloorplan(ctx context.Context, id *uint) (*uint, error) {
	if id == nil || *id == 0 {
		return nil, nil
	}

	if _, err := f.repo.GetFloorplanByID(ctx, *id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown floor plan %d", ErrInvalidInput, *id)
		}
		return nil, mapErr(err)
	}

	floorplanID := *id
	return &floorplanID, nil
}

func mapErr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
