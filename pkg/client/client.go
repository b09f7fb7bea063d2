package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var ErrNotFound = errors.New("not found")

type SpaceMonitorClient interface {
	GetFloorplans(ctx context.Context) ([]types.Floorplan, error)
	GetFloorplanDevices(ctx context.Context, floorplanID uint) ([]types.Device, error)
	GetDevices(ctx context.Context) ([]types.Device, error)
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	CreateDevice(ctx context.Context, device types.NewDevice) (types.Device, error)
	MoveDevice(ctx context.Context, deviceID uint, location types.DeviceLocation) (types.Device, error)
	RecordReading(ctx context.Context, deviceID uint, value float64) error
}

type spaceMonitorClient struct {
	url        string
	httpClient http.Client
}

var tracer = otel.Tracer("space-monitor-client")

func New(url string) SpaceMonitorClient {
	return &spaceMonitorClient{
		url: strings.TrimSuffix(url, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *spaceMonitorClient) GetFloorplans(ctx context.Context) ([]types.Floorplan, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-floorplans")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	floorplans := []types.Floorplan{}
	err = c.do(ctx, http.MethodGet, "/api/floorplans/", nil, http.StatusOK, &floorplans)
	return floorplans, err
}

func (c *spaceMonitorClient) GetFloorplanDevices(ctx context.Context, floorplanID uint) ([]types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-floorplan-devices")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	devices := []types.Device{}
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/floorplans/%d/devices", floorplanID), nil, http.StatusOK, &devices)
	return devices, err
}

func (c *spaceMonitorClient) GetDevices(ctx context.Context) ([]types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-devices")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	devices := []types.Device{}
	err = c.do(ctx, http.MethodGet, "/api/devices/getd", nil, http.StatusOK, &devices)
	return devices, err
}

func (c *spaceMonitorClient) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	device := types.Device{}
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/devices/%d", deviceID), nil, http.StatusOK, &device)
	return device, err
}

func (c *spaceMonitorClient) CreateDevice(ctx context.Context, newDevice types.NewDevice) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "create-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	device := types.Device{}
	err = c.do(ctx, http.MethodPost, "/api/devices/postd", newDevice, http.StatusCreated, &device)
	return device, err
}

func (c *spaceMonitorClient) MoveDevice(ctx context.Context, deviceID uint, location types.DeviceLocation) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "move-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	device := types.Device{}
	err = c.do(ctx, http.MethodPut, fmt.Sprintf("/api/devices/putd/%d", deviceID), location, http.StatusOK, &device)
	return device, err
}

func (c *spaceMonitorClient) RecordReading(ctx context.Context, deviceID uint, value float64) error {
	var err error
	ctx, span := tracer.Start(ctx, "record-reading")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	err = c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/readings", deviceID), types.Reading{Value: value}, http.StatusCreated, nil)
	return err
}

func (c *spaceMonitorClient) do(ctx context.Context, method, path string, body any, expectedStatus int, result any) error {
	log := logging.GetLoggerFromContext(ctx)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode != expectedStatus {
		log.Error().Msgf("request to %s failed with status code %d", path, resp.StatusCode)
		return fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}

	if result == nil {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err = json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}
