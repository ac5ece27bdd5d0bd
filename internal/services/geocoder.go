package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"santa-tracker-backend/internal/models"
)

const geocodeTimeout = 10 * time.Second

// Geocoder resolves a postal address to coordinates. A nil result without
// error means the address is unknown.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// NominatimGeocoder queries an OpenStreetMap Nominatim search endpoint
type NominatimGeocoder struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewNominatimGeocoder creates a geocoder for the Nominatim instance at baseURL
func NewNominatimGeocoder(baseURL, userAgent string) *NominatimGeocoder {
	return &NominatimGeocoder{
		httpClient: &http.Client{Timeout: geocodeTimeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode looks up the first match of the address
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", address)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode %q: %w", address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from geocoder", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}
	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// FamilyAddress formats the full postal address of a family within a tour's city
func FamilyAddress(family *models.Family, tour *models.Tour) string {
	return fmt.Sprintf("%s %s, %s, %s %s",
		family.StreetNumber, family.StreetName, tour.City, tour.State, tour.ZipCode)
}
