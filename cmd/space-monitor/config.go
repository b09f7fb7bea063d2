package main

import (
	"io"
	"os"
	"strings"

	"github.com/diwise/space-monitor/internal/pkg/application/alerts"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/samber/lo"
	yaml "gopkg.in/yaml.v2"
)

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort
	logLevel

	configurationFile
	uploadsDir

	dbDriver
	dbHost
	dbUser
	dbPassword
	dbPort
	dbName
	dbSSLMode
	sqliteFile

	jwtSecret
	allowedOrigins
	broadcastInterval

	simulatorEnabled
	simulatorInterval
	rabbitMQEnabled
)

type appConfig struct {
	alerts.Config `yaml:",inline"`

	DeviceTypes []types.DeviceType `yaml:"deviceTypes"`
	Floorplans  []types.Floorplan  `yaml:"floorplans"`
}

var defaultDeviceTypes = []types.DeviceType{
	{Name: "Temperature", ImageURL: "/private_uploads/icons/temperature.png", HasValue: true},
	{Name: "Humidity", ImageURL: "/private_uploads/icons/humidity.png", HasValue: true},
	{Name: "Gas", ImageURL: "/private_uploads/icons/gas.png", HasValue: true},
	{Name: "Camera", ImageURL: "/private_uploads/icons/camera.png"},
}

// loadAppConfig reads path, or returns the built in device types when path is empty.
func loadAppConfig(path string) (*appConfig, error) {
	if path == "" {
		return &appConfig{DeviceTypes: defaultDeviceTypes}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseAppConfig(f)
}

func parseAppConfig(r io.Reader) (*appConfig, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := &appConfig{}
	if err = yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}

	if len(cfg.DeviceTypes) == 0 {
		cfg.DeviceTypes = defaultDeviceTypes
	}

	return cfg, nil
}

// splitOrigins parses a comma separated origin list, ignoring blank entries.
func splitOrigins(value string) []string {
	origins := lo.Map(strings.Split(value, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	})

	return lo.Filter(origins, func(o string, _ int) bool {
		return o != ""
	})
}
