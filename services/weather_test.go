package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherLookupOk(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"current": {"temperature_2m": 21.5, "relative_humidity_2m": 60, "wind_speed_10m": 12.3, "weather_code": 0},
			"daily": {"temperature_2m_max": [24.0], "temperature_2m_min": [15.5]}
		}`))
	}))
	defer server.Close()

	service := &WeatherService{BaseURL: server.URL, Client: server.Client()}
	result := service.Lookup(context.Background(), 40.7, -74.0)

	assert.Contains(t, gotQuery, "latitude=40.7")
	assert.Contains(t, gotQuery, "current=temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	assert.Contains(t, gotQuery, "daily=temperature_2m_max,temperature_2m_min")

	assert.Contains(t, result, "21.5°C")
	assert.Contains(t, result, "Clear sky")
	assert.Contains(t, result, "60%")
	assert.Contains(t, result, "12.3 km/h")
	assert.Contains(t, result, "high: 24.0°C")
	assert.Contains(t, result, "low: 15.5°C")
}

func TestWeatherLookupNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	service := &WeatherService{BaseURL: server.URL, Client: &http.Client{}}
	result := service.Lookup(context.Background(), 40.7, -74.0)
	assert.Contains(t, result, "unavailable")
}

func TestWeatherLookupBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := &WeatherService{BaseURL: server.URL, Client: server.Client()}
	result := service.Lookup(context.Background(), 40.7, -74.0)
	assert.Contains(t, result, "unavailable")
	assert.Contains(t, result, "502")
}

func TestWeatherLookupMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	service := &WeatherService{BaseURL: server.URL, Client: server.Client()}
	result := service.Lookup(context.Background(), 40.7, -74.0)
	assert.Contains(t, result, "unavailable")
}

func TestWeatherCodeDescriptions(t *testing.T) {
	require.Equal(t, "Clear sky", WeatherCodeDescription(0))
	require.Equal(t, "Partly cloudy", WeatherCodeDescription(2))
	require.Equal(t, "Fog", WeatherCodeDescription(48))
	require.Equal(t, "Drizzle", WeatherCodeDescription(53))
	require.Equal(t, "Rain", WeatherCodeDescription(61))
	require.Equal(t, "Rain", WeatherCodeDescription(63))
	require.Equal(t, "Rain", WeatherCodeDescription(65))
	require.Equal(t, "Snow", WeatherCodeDescription(73))
	require.Equal(t, "Rain showers", WeatherCodeDescription(81))
	require.Equal(t, "Snow showers", WeatherCodeDescription(86))
	require.Equal(t, "Thunderstorm", WeatherCodeDescription(95))
	require.Equal(t, "Unknown", WeatherCodeDescription(12))
}
