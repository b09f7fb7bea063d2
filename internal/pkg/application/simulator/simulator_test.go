package simulator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestOnlyDevicesWithValuesAreSimulated(t *testing.T) {
	is := is.New(t)

	f := &facilityMock{
		deviceTypes: []types.DeviceType{{ID: 1, Name: "Temperature", HasValue: true}, {ID: 2, Name: "Camera"}},
		devices:     []types.Device{{ID: 10, DeviceTypeID: 1}, {ID: 11, DeviceTypeID: 2}, {ID: 12, DeviceTypeID: 1}},
	}

	s := New(f, 0, 1)
	is.NoErr(s.Tick(context.Background()))

	is.Equal(2, len(f.readings))
	is.Equal(uint(10), f.readings[0].DeviceID)
	is.Equal(uint(12), f.readings[1].DeviceID)
}

func TestSimulatedValuesStayNearThresholds(t *testing.T) {
	is := is.New(t)

	lo, hi := 10.0, 20.0
	f := &facilityMock{
		deviceTypes: []types.DeviceType{{ID: 1, HasValue: true}},
		devices:     []types.Device{{ID: 1, DeviceTypeID: 1, MinAlert: &lo, MaxAlert: &hi}, {ID: 2, DeviceTypeID: 1}},
	}

	s := New(f, 0, 42)
	for i := 0; i < 200; i++ {
		is.NoErr(s.Tick(context.Background()))
	}

	for _, r := range f.readings {
		is.Equal(r.Value, math.Round(r.Value*100)/100) // rounded to two decimals

		if r.DeviceID == 1 {
			is.True(r.Value >= 9 && r.Value <= 21)
		} else {
			is.True(r.Value >= 19.5 && r.Value <= 25.5)
		}
	}
}

func TestFailedRecordingDoesNotStopTick(t *testing.T) {
	is := is.New(t)

	f := &facilityMock{
		deviceTypes: []types.DeviceType{{ID: 1, HasValue: true}},
		devices:     []types.Device{{ID: 1, DeviceTypeID: 1}, {ID: 2, DeviceTypeID: 1}},
		failFor:     1,
	}

	s := New(f, 0, 7)
	is.NoErr(s.Tick(context.Background()))
	is.Equal(1, len(f.readings))
}

func TestRunLogsFailedTicksUntilCancelled(t *testing.T) {
	is := is.New(t)

	buf := &bytes.Buffer{}
	ctx, cancel := context.WithCancel(logging.NewContextWithLogger(context.Background(), zerolog.New(&syncWriter{w: buf})))

	f := &facilityMock{err: errors.New("database is gone")}
	s := New(f, 5*time.Millisecond, 1)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}

	is.True(strings.Contains(buf.String(), "simulation tick failed"))
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type facilityMock struct {
	deviceTypes []types.DeviceType
	devices     []types.Device
	readings    []types.Reading
	failFor     uint
	err         error
}

func (f *facilityMock) GetDeviceTypes(ctx context.Context) ([]types.DeviceType, error) {
	return f.deviceTypes, nil
}

func (f *facilityMock) GetDevices(ctx context.Context) ([]types.Device, error) {
	return f.devices, f.err
}

func (f *facilityMock) RecordReading(ctx context.Context, reading types.Reading, source string) (types.Device, error) {
	if reading.DeviceID == f.failFor {
		return types.Device{}, errors.New("device is gone")
	}
	f.readings = append(f.readings, reading)
	return types.Device{ID: reading.DeviceID}, nil
}
