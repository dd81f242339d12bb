package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"travelbook/internal/allocator"
	"travelbook/internal/auth"
	"travelbook/internal/availability"
	"travelbook/internal/config"
	"travelbook/internal/database"
	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// failingStore fails appends and updates on selected tables.
type failingStore struct {
	domain.RowStore
	mu         sync.Mutex
	failAppend map[string]error
	failUpdate map[string]error
}

func newFailingStore(inner domain.RowStore) *failingStore {
	return &failingStore{RowStore: inner, failAppend: map[string]error{}, failUpdate: map[string]error{}}
}

func (f *failingStore) setAppendErr(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAppend[table] = err
}

func (f *failingStore) setUpdateErr(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdate[table] = err
}

func (f *failingStore) AppendRow(ctx context.Context, table string, values []interface{}) error {
	f.mu.Lock()
	err := f.failAppend[table]
	f.mu.Unlock()
	if err != nil {
		return domain.StoreError("append", table, err)
	}
	return f.RowStore.AppendRow(ctx, table, values)
}

func (f *failingStore) UpdateRow(ctx context.Context, table string, index int, values []interface{}) error {
	f.mu.Lock()
	err := f.failUpdate[table]
	f.mu.Unlock()
	if err != nil {
		return domain.StoreError("update", table, err)
	}
	return f.RowStore.UpdateRow(ctx, table, index, values)
}

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) PublishJSON(eventType string, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordedEvents) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []models.SyncTask
}

func (q *fakeQueue) Enqueue(_ context.Context, task models.SyncTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

type env struct {
	mem      *repository.MemoryStore
	store    *failingStore
	tables   *repository.Tables
	ids      domain.IDAllocator
	events   *recordedEvents
	bookings *BookingService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, func(store domain.RowStore) domain.IDAllocator {
		seq := allocator.NewLocalSequence()
		t.Cleanup(seq.Close)
		return allocator.NewCounter(seq, allocator.NewScan(store, testLogger()), testLogger())
	})
}

// newScanEnv allocates IDs by scanning the tables, as allocator.mode=scan does.
func newScanEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, func(store domain.RowStore) domain.IDAllocator {
		return allocator.NewScan(store, testLogger(), allocator.WithBackoff(time.Millisecond, 2*time.Millisecond))
	})
}

func newEnvWith(t *testing.T, newIDs func(store domain.RowStore) domain.IDAllocator) *env {
	t.Helper()
	mem := repository.NewMemoryStore()
	store := newFailingStore(mem)
	tables := repository.NewTables(store, testLogger())
	ids := newIDs(store)
	rec := &recordedEvents{}

	e := &env{
		mem:      mem,
		store:    store,
		tables:   tables,
		ids:      ids,
		events:   rec,
		bookings: NewBookingService(tables, ids, availability.NewEngine(tables, true), rec, testLogger()),
	}
	e.seedCatalog(t)
	return e
}

func (e *env) add(t *testing.T, table string, values []interface{}) {
	t.Helper()
	require.NoError(t, e.mem.AppendRow(context.Background(), table, values))
}

func (e *env) seedCatalog(t *testing.T) {
	e.add(t, models.TableFlight, models.Flight{
		ID: "FL0001", FlightNumber: "TB350", AirlineName: "Travelbook Air", OriginCode: "DEL", DestinationCode: "BOM",
		DepartureTime: date(2025, 12, 1).Add(8 * time.Hour), ArrivalTime: date(2025, 12, 1).Add(10 * time.Hour),
		BasePrice: 350,
	}.Values())
	e.add(t, models.TableHotel, models.Hotel{ID: "HT0001", Name: "Harbour View", CityID: "CT0001"}.Values())
	e.add(t, models.TableRoom, models.Room{ID: "RM0001", HotelID: "HT0001", RoomType: "single", Capacity: 1, PricePerNight: 90}.Values())
	e.add(t, models.TableCar, models.Car{ID: "CR0001", CityID: "CT0001", Model: "Swift", Brand: "Suzuki", PricePerDay: 30}.Values())
}

func (e *env) count(t *testing.T, table string) int {
	t.Helper()
	rows, err := e.mem.ReadTable(context.Background(), table)
	require.NoError(t, err)
	n := 0
	for _, r := range rows {
		if !r.Empty() {
			n++
		}
	}
	return n
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func twoPassengers() []PassengerInput {
	return []PassengerInput{
		{FirstName: "Asha", LastName: "Rao", Gender: "F", DOB: date(1990, 4, 2), PassportNo: "P1234567"},
		{FirstName: "Vikram", LastName: "Rao", Gender: "M", DOB: date(1988, 7, 9), PassportNo: "P7654321"},
	}
}

const testSecret = "0123456789abcdef-test-secret"

func newAuthEnv(t *testing.T, relational bool) (*env, *AuthService, *database.DB, *fakeQueue) {
	t.Helper()
	return newAuthEnvOn(t, newEnv(t), relational)
}

func newAuthEnvOn(t *testing.T, e *env, relational bool) (*env, *AuthService, *database.DB, *fakeQueue) {
	t.Helper()
	queue := &fakeQueue{}
	deps := AuthDeps{
		Tables:     e.tables,
		IDs:        e.ids,
		Tokens:     auth.NewTokenIssuer(testSecret, "travelbook"),
		SessionTTL: time.Hour,
		Queue:      queue,
		Events:     e.events,
		Logger:     testLogger(),
	}
	var db *database.DB
	if relational {
		var err error
		db, err = database.NewDB(config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "users.db"),
		}, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		deps.Users = db
		deps.Logins = db
	}
	return e, NewAuthService(deps), db, queue
}

func decodeCells(t *testing.T, payload string) []string {
	t.Helper()
	var cells []string
	require.NoError(t, json.Unmarshal([]byte(payload), &cells))
	return cells
}
