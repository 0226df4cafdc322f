// Package geoip resolves client addresses against an offline MaxMind City database.
package geoip

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/couchcryptid/safesea/internal/domain"
)

// CityDB is the subset of the MaxMind reader the locator needs.
type CityDB interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Reader implements domain.Locator over a GeoIP2 or GeoLite2 City database.
type Reader struct {
	db CityDB
}

// Open loads the database at path.
func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return NewReader(db), nil
}

// NewReader wraps an already opened database.
func NewReader(db CityDB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) Name() string { return "geoip2" }

// Locate looks up ip in the database. The database cannot locate the server
// itself, so an empty or non-public ip is an error.
func (r *Reader) Locate(_ context.Context, ip string) (domain.Coordinate, error) {
	addr, ok := domain.PublicAddr(ip)
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: no public client address %q", domain.ErrLocationUnavailable, ip)
	}

	rec, err := r.db.City(net.IP(addr.AsSlice()))
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geoip lookup %s: %w", addr, err)
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return domain.Coordinate{}, fmt.Errorf("%w: %s not in database", domain.ErrLocationUnavailable, addr)
	}
	return domain.Coordinate{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude}, nil
}

// Close releases the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
