package weather

import (
	"errors"
	"fmt"
	"strings"
)

// Exported variables.
var (
	ErrNoReadings = errors.New("no readings")
)

// Client talks to a weather service. Its operations are func fields so tests
// can replace them.
type Client struct {
	Temperature func(city string) (float64, error)
	Conditions  func(city string) string
}

// NewClient returns a client whose operations would hit the network.
func NewClient(baseURL string) *Client {
	return &Client{
		Temperature: func(city string) (float64, error) {
			return 0, fmt.Errorf("GET %s/temp/%s: %w", baseURL, city, ErrNoReadings)
		},
		Conditions: func(string) string { return "unknown" },
	}
}

// Report describes the weather in city using client.
func Report(client *Client, city string) (string, error) {
	temp, err := client.Temperature(city)
	if err != nil {
		return "", fmt.Errorf("reporting on %s: %w", city, err)
	}

	return fmt.Sprintf("%s: %.1f°C, %s", city, temp, strings.ToLower(client.Conditions(city))), nil
}
