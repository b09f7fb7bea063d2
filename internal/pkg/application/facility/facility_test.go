package facility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diwise/space-monitor/internal/pkg/application/alerts"
	db "github.com/diwise/space-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/go-chi/jwtauth/v5"
	"github.com/matryer/is"
)

func TestRegisterAndLogin(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	user, err := svc.Register(ctx, types.Credentials{Username: "alice", Password: "secret"})
	is.NoErr(err)
	is.Equal("alice", user.Username)

	_, err = svc.Register(ctx, types.Credentials{Username: "alice", Password: "other"})
	is.True(errors.Is(err, ErrUserExists))

	token, err := svc.Login(ctx, types.Credentials{Username: "alice", Password: "secret"})
	is.NoErr(err)
	is.True(token.Token != "")

	decoded, err := testTokenAuth.Decode(token.Token)
	is.NoErr(err)
	is.Equal("alice", decoded.PrivateClaims()["username"])
	is.True(decoded.Expiration().After(time.Now()))

	_, err = svc.Login(ctx, types.Credentials{Username: "alice", Password: "wrong"})
	is.True(errors.Is(err, ErrInvalidCredentials))

	_, err = svc.Login(ctx, types.Credentials{Username: "mallory", Password: "secret"})
	is.True(errors.Is(err, ErrInvalidCredentials))

	users, err := svc.GetUsers(ctx)
	is.NoErr(err)
	is.Equal(1, len(users))
}

func TestRegisterLosingRaceForUsername(t *testing.T) {
	is, ctx, _, repo := testSetup(t)

	// the existence check misses, as when two registrations interleave
	svc := New(&staleUserLookup{Repository: repo}, nil, testTokenAuth)

	_, err := svc.Register(ctx, types.Credentials{Username: "alice", Password: "secret"})
	is.NoErr(err)

	_, err = svc.Register(ctx, types.Credentials{Username: "alice", Password: "other"})
	is.True(errors.Is(err, ErrUserExists))
}

func TestLoginRequiresUsername(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	_, err := svc.Register(ctx, types.Credentials{Username: "alice", Password: "secret"})
	is.NoErr(err)

	_, err = svc.Login(ctx, types.Credentials{Username: "", Password: "secret"})
	is.True(errors.Is(err, ErrInvalidCredentials))
}

func TestRegisterRequiresUsernameAndPassword(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	_, err := svc.Register(ctx, types.Credentials{Username: "alice"})
	is.True(errors.Is(err, ErrInvalidInput))
}

func TestFloorplans(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	created, err := svc.CreateFloorplan(ctx, types.Floorplan{Name: "Level 1", ImageURL: "/private_uploads/l1.png"})
	is.NoErr(err)
	is.True(created.ID != 0)

	updated, err := svc.UpdateFloorplan(ctx, created.ID, types.Floorplan{Name: "Level 1B", ImageURL: created.ImageURL})
	is.NoErr(err)
	is.Equal("Level 1B", updated.Name)

	fromSvc, err := svc.GetFloorplan(ctx, created.ID)
	is.NoErr(err)
	is.Equal("Level 1B", fromSvc.Name)

	_, err = svc.GetFloorplan(ctx, 4711)
	is.True(errors.Is(err, ErrNotFound))

	_, err = svc.CreateFloorplan(ctx, types.Floorplan{})
	is.True(errors.Is(err, ErrInvalidInput))

	all, err := svc.GetFloorplans(ctx)
	is.NoErr(err)
	is.Equal(1, len(all))
}

func TestCreateDevice(t *testing.T) {
	is, ctx, svc, repo := testSetup(t)
	dt, fp := seed(t, ctx, repo)

	d, err := svc.CreateDevice(ctx, types.NewDevice{
		Name:         "TemperaturePL",
		DeviceTypeID: dt.ID,
		FloorplanID:  &fp.ID,
		PathTopic:    "TemperatureSensor/1",
		XPercent:     1.4,
		YPercent:     -0.2,
	})
	is.NoErr(err)
	is.Equal(1.0, d.XPercent)
	is.Equal(0.0, d.YPercent)
	is.Equal(fp.ID, *d.FloorplanID)

	onFloorplan, err := svc.GetFloorplanDevices(ctx, fp.ID)
	is.NoErr(err)
	is.Equal(1, len(onFloorplan))

	_, err = svc.GetFloorplanDevices(ctx, 4711)
	is.True(errors.Is(err, ErrNotFound))
}

func TestCreateDeviceValidation(t *testing.T) {
	is, ctx, svc, repo := testSetup(t)
	dt, _ := seed(t, ctx, repo)

	_, err := svc.CreateDevice(ctx, types.NewDevice{Name: "x", DeviceTypeID: 99})
	is.True(errors.Is(err, ErrInvalidInput))

	unknown := uint(99)
	_, err = svc.CreateDevice(ctx, types.NewDevice{Name: "x", DeviceTypeID: dt.ID, FloorplanID: &unknown})
	is.True(errors.Is(err, ErrInvalidInput))

	lo, hi := 30.0, 10.0
	_, err = svc.CreateDevice(ctx, types.NewDevice{Name: "x", DeviceTypeID: dt.ID, MinAlert: &lo, MaxAlert: &hi})
	is.True(errors.Is(err, ErrInvalidInput))
}

func TestMoveDevice(t *testing.T) {
	is, ctx, svc, repo := testSetup(t)
	dt, fp := seed(t, ctx, repo)

	d, err := svc.CreateDevice(ctx, types.NewDevice{Name: "GasDetector", DeviceTypeID: dt.ID, XPercent: 0.3, YPercent: 0.4})
	is.NoErr(err)
	is.True(d.FloorplanID == nil)

	x := 0.9
	moved, err := svc.MoveDevice(ctx, d.ID, types.DeviceLocation{FloorplanID: &fp.ID, XPercent: &x})
	is.NoErr(err)
	is.Equal(fp.ID, *moved.FloorplanID)
	is.Equal(0.9, moved.XPercent)
	is.Equal(0.4, moved.YPercent)

	zero := uint(0)
	removed, err := svc.MoveDevice(ctx, d.ID, types.DeviceLocation{FloorplanID: &zero})
	is.NoErr(err)
	is.True(removed.FloorplanID == nil)

	_, err = svc.MoveDevice(ctx, 4711, types.DeviceLocation{FloorplanID: &fp.ID})
	is.True(errors.Is(err, ErrNotFound))
}

func TestDragDevice(t *testing.T) {
	is, ctx, svc, repo := testSetup(t)
	dt, fp := seed(t, ctx, repo)

	d, err := svc.CreateDevice(ctx, types.NewDevice{Name: "Camera", DeviceTypeID: dt.ID, FloorplanID: &fp.ID, XPercent: 0.5, YPercent: 0.5})
	is.NoErr(err)

	// 1000x500 container has a marker size of 35 and a travel of 965x465
	dragged, err := svc.DragDevice(ctx, d.ID, types.DeviceDrag{DeltaX: 96.5, DeltaY: -1000, ContainerWidth: 1000, ContainerHeight: 500})
	is.NoErr(err)
	is.True(dragged.XPercent > 0.599 && dragged.XPercent < 0.601)
	is.Equal(0.0, dragged.YPercent)

	_, err = svc.DragDevice(ctx, d.ID, types.DeviceDrag{DeltaX: 1, ContainerWidth: 0, ContainerHeight: 500})
	is.True(errors.Is(err, ErrInvalidInput))
}

func TestRecordReadingUpdatesLatestValue(t *testing.T) {
	is, ctx, svc, repo := testSetup(t)
	dt, fp := seed(t, ctx, repo)

	d, err := svc.CreateDevice(ctx, types.NewDevice{Name: "TemperaturePL", DeviceTypeID: dt.ID, FloorplanID: &fp.ID, PathTopic: "TemperatureSensor/1"})
	is.NoErr(err)

	_, err = svc.RecordReading(ctx, types.Reading{PathTopic: "TemperatureSensor/1", Value: 21.5}, "test")
	is.NoErr(err)

	values, err := svc.LatestValues(ctx)
	is.NoErr(err)
	is.Equal(1, len(values))
	is.Equal(d.ID, values[0].ID)
	is.Equal(21.5, *values[0].LatestValue)

	history, err := svc.GetSensorInfo(ctx, &fp.ID, 10)
	is.NoErr(err)
	is.Equal(1, len(history))

	_, err = svc.RecordReading(ctx, types.Reading{PathTopic: "Unknown/1", Value: 1}, "test")
	is.True(errors.Is(err, ErrNotFound))

	_, err = svc.RecordReading(ctx, types.Reading{Value: 1}, "test")
	is.True(errors.Is(err, ErrInvalidInput))
}

func TestRecordReadingAboveMaxRaisesAlert(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := db.New(db.NewSQLiteConnector(ctx))
	is.NoErr(err)
	t.Cleanup(func() { repo.Close() })

	notifier := &alerts.NotifierMock{
		NotifyFunc: func(ctx context.Context, alert types.AlertRaised) error {
			return nil
		},
	}

	svc := New(repo, notifier, testTokenAuth)
	dt, fp := seed(t, ctx, repo)

	hi := 30.0
	d, err := svc.CreateDevice(ctx, types.NewDevice{Name: "TemperaturePL", DeviceTypeID: dt.ID, FloorplanID: &fp.ID, MaxAlert: &hi})
	is.NoErr(err)

	_, err = svc.RecordReading(ctx, types.Reading{DeviceID: d.ID, Value: 25}, "test")
	is.NoErr(err)
	is.Equal(0, len(notifier.NotifyCalls()))

	_, err = svc.RecordReading(ctx, types.Reading{DeviceID: d.ID, Value: 35}, "test")
	is.NoErr(err)
	is.Equal(1, len(notifier.NotifyCalls()))

	alert := notifier.NotifyCalls()[0].Alert
	is.Equal(types.AlertAboveMax, alert.Kind)
	is.Equal("Level 1", alert.FloorplanName)
	is.Equal(35.0, alert.Value)
}

func TestFailedAlertDoesNotFailReading(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := db.New(db.NewSQLiteConnector(ctx))
	is.NoErr(err)
	t.Cleanup(func() { repo.Close() })

	notifier := &alerts.NotifierMock{
		NotifyFunc: func(ctx context.Context, alert types.AlertRaised) error {
			return errors.New("subscriber unavailable")
		},
	}

	svc := New(repo, notifier, testTokenAuth)
	dt, _ := seed(t, ctx, repo)

	lo := 5.0
	d, err := svc.CreateDevice(ctx, types.NewDevice{Name: "Fridge", DeviceTypeID: dt.ID, MinAlert: &lo})
	is.NoErr(err)

	updated, err := svc.RecordReading(ctx, types.Reading{DeviceID: d.ID, Value: 2}, "test")
	is.NoErr(err)
	is.Equal(2.0, *updated.LatestValue)
}

var testTokenAuth = jwtauth.New("HS256", []byte("test-secret"), nil)

func seed(t *testing.T, ctx context.Context, repo db.Repository) (db.DeviceType, db.Floorplan) {
	is := is.New(t)

	dt := db.DeviceType{Name: "Temperature", HasValue: true}
	is.NoErr(repo.SaveDeviceType(ctx, &dt))

	fp := db.Floorplan{Name: "Level 1"}
	is.NoErr(repo.SaveFloorplan(ctx, &fp))

	return dt, fp
}

func testSetup(t *testing.T) (*is.I, context.Context, Facility, db.Repository) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := db.New(db.NewSQLiteConnector(ctx))
	is.NoErr(err)

	t.Cleanup(func() { repo.Close() })

	return is, ctx, New(repo, nil, testTokenAuth), repo
}

type staleUserLookup struct {
	db.Repository
}

func (s *staleUserLookup) GetUserByUsername(ctx context.Context, username string) (db.User, error) {
	return db.User{}, db.ErrNotFound
}
