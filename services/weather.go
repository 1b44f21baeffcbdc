package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type WeatherProvider interface {
	Lookup(ctx context.Context, lat float64, lon float64) string
}

// WeatherService queries the Open-Meteo forecast API. Lookup never
// returns an error: failures degrade to a textual "unavailable" result
// because the output is fed back to the model as a tool result.
type WeatherService struct {
	BaseURL string
	Client  *http.Client
}

func NewWeatherService() *WeatherService {
	return &WeatherService{
		BaseURL: GetEnv("WEATHER_API_URL", "https://api.open-meteo.com/v1/forecast"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type weatherResponse struct {
	Current struct {
		Temperature2m      float64 `json:"temperature_2m"`
		RelativeHumidity2m float64 `json:"relative_humidity_2m"`
		WindSpeed10m       float64 `json:"wind_speed_10m"`
		WeatherCode        int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// WeatherCodeDescription buckets WMO weather codes into readable conditions.
func WeatherCodeDescription(code int) string {
	switch code {
	case 0:
		return "Clear sky"
	case 1, 2, 3:
		return "Partly cloudy"
	case 45, 48:
		return "Fog"
	case 51, 53, 55:
		return "Drizzle"
	case 61, 63, 65:
		return "Rain"
	case 71, 73, 75:
		return "Snow"
	case 80, 81, 82:
		return "Rain showers"
	case 85, 86:
		return "Snow showers"
	case 95, 96, 99:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}

func (ws *WeatherService) Lookup(ctx context.Context, lat float64, lon float64) string {
	url := fmt.Sprintf(
		"%s?latitude=%f&longitude=%f&current=temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code&daily=temperature_2m_max,temperature_2m_min",
		ws.BaseURL, lat, lon,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		fmt.Println("Error creating weather request:", err)
		return "Weather service unavailable: could not build request."
	}
	resp, err := ws.Client.Do(req)
	if err != nil {
		fmt.Println("Error calling weather API:", err)
		return "Weather service unavailable: request failed."
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Println("Weather API status:", resp.StatusCode)
		return fmt.Sprintf("Weather service unavailable: status %d.", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Println("Error reading weather response:", err)
		return "Weather service unavailable: could not read response."
	}

	var weather weatherResponse
	if err := json.Unmarshal(body, &weather); err != nil {
		fmt.Println("Error parsing weather response:", err)
		return "Weather service unavailable: malformed response."
	}
	if len(weather.Daily.Temperature2mMax) == 0 || len(weather.Daily.Temperature2mMin) == 0 {
		return "Weather service unavailable: no forecast data."
	}

	return fmt.Sprintf(
		"Current weather: %.1f°C, %s. Humidity: %.0f%%. Wind speed: %.1f km/h. Today's high: %.1f°C, low: %.1f°C.",
		weather.Current.Temperature2m,
		WeatherCodeDescription(weather.Current.WeatherCode),
		weather.Current.RelativeHumidity2m,
		weather.Current.WindSpeed10m,
		weather.Daily.Temperature2mMax[0],
		weather.Daily.Temperature2mMin[0],
	)
}
