// Package catalog loads the reference inventory (cities, airports, flights,
// hotels, rooms, cars) from YAML and seeds it into the row store.
package catalog

import (
	"context"
	"fmt"
	"os"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// Catalog mirrors configs/catalog.yaml.
type Catalog struct {
	Cities   []models.City    `yaml:"cities"`
	Airports []models.Airport `yaml:"airports"`
	Flights  []models.Flight  `yaml:"flights"`
	Hotels   []models.Hotel   `yaml:"hotels"`
	Rooms    []models.Room    `yaml:"rooms"`
	Cars     []models.Car     `yaml:"cars"`
}

type entry struct {
	key    string
	values []interface{}
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the references between entries and the fields the search
// and booking paths rely on.
func (c *Catalog) Validate() error {
	cities := make(map[string]struct{}, len(c.Cities))
	for _, city := range c.Cities {
		if city.ID == "" {
			return fmt.Errorf("city %q: missing id", city.Name)
		}
		cities[city.ID] = struct{}{}
	}
	airports := make(map[string]struct{}, len(c.Airports))
	for _, a := range c.Airports {
		if _, ok := cities[a.CityID]; !ok {
			return fmt.Errorf("airport %s: unknown city %q", a.Code, a.CityID)
		}
		airports[a.Code] = struct{}{}
	}
	for _, fl := range c.Flights {
		_, okFrom := airports[fl.OriginCode]
		_, okTo := airports[fl.DestinationCode]
		if !okFrom || !okTo {
			return fmt.Errorf("flight %s: unknown airport", fl.ID)
		}
		if !fl.ArrivalTime.After(fl.DepartureTime) {
			return fmt.Errorf("flight %s: arrival must be after departure", fl.ID)
		}
		if fl.BasePrice < 0 {
			return fmt.Errorf("flight %s: negative price", fl.ID)
		}
	}
	hotels := make(map[string]struct{}, len(c.Hotels))
	for _, h := range c.Hotels {
		if _, ok := cities[h.CityID]; !ok {
			return fmt.Errorf("hotel %s: unknown city %q", h.ID, h.CityID)
		}
		hotels[h.ID] = struct{}{}
	}
	for _, rm := range c.Rooms {
		if _, ok := hotels[rm.HotelID]; !ok {
			return fmt.Errorf("room %s: unknown hotel %q", rm.ID, rm.HotelID)
		}
		if rm.Capacity < 1 {
			return fmt.Errorf("room %s: capacity must be positive", rm.ID)
		}
	}
	for _, car := range c.Cars {
		if _, ok := cities[car.CityID]; !ok {
			return fmt.Errorf("car %s: unknown city %q", car.ID, car.CityID)
		}
	}
	return nil
}

func (c *Catalog) entries() map[string][]entry {
	out := make(map[string][]entry, 6)
	for _, v := range c.Cities {
		out[models.TableCity] = append(out[models.TableCity], entry{v.ID, v.Values()})
	}
	for _, v := range c.Airports {
		out[models.TableAirport] = append(out[models.TableAirport], entry{v.Code, v.Values()})
	}
	for _, v := range c.Flights {
		out[models.TableFlight] = append(out[models.TableFlight], entry{v.ID, v.Values()})
	}
	for _, v := range c.Hotels {
		out[models.TableHotel] = append(out[models.TableHotel], entry{v.ID, v.Values()})
	}
	for _, v := range c.Rooms {
		out[models.TableRoom] = append(out[models.TableRoom], entry{v.ID, v.Values()})
	}
	for _, v := range c.Cars {
		out[models.TableCar] = append(out[models.TableCar], entry{v.ID, v.Values()})
	}
	return out
}

// Result counts what Seed did per run.
type Result struct {
	Created int
	Skipped int
}

// Seed appends every catalog entry whose key is not in its table yet.
// Existing rows are left untouched, so reseeding is safe.
func Seed(ctx context.Context, store domain.RowStore, c *Catalog, logger *zerolog.Logger) (Result, error) {
	var res Result
	entries := c.entries()
	for _, table := range models.TableNames() {
		list := entries[table]
		if len(list) == 0 {
			continue
		}
		rows, err := store.ReadTable(ctx, table)
		if err != nil {
			return res, domain.StoreError("read", table, err)
		}
		key := models.KeyColumn(table)
		existing := make(map[string]struct{}, len(rows))
		for _, r := range rows {
			existing[r.Get(key)] = struct{}{}
		}
		for _, e := range list {
			if _, ok := existing[e.key]; ok {
				res.Skipped++
				continue
			}
			if err := store.AppendRow(ctx, table, e.values); err != nil {
				return res, domain.StoreError("append", table, err)
			}
			existing[e.key] = struct{}{}
			res.Created++
		}
		logger.Debug().Str("table", table).Int("entries", len(list)).Msg("catalog table seeded")
	}
	return res, nil
}
