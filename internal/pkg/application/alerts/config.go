package alerts

type SubscriberConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

// Config is read as part of the service configuration file. Only notifications of
// type AlertEventType are delivered.
type Config struct {
	Notifications []Notification `yaml:"notifications"`
}
