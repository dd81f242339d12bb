package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsStore) {
	t.Helper()
	ctx := context.Background()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return mux, NewSheetsStoreWithService(srv, "sid", 5*time.Second)
}

func decodeValueRange(t *testing.T, r *http.Request) sheets.ValueRange {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var vr sheets.ValueRange
	require.NoError(t, json.Unmarshal(body, &vr))
	return vr
}

func TestSheetsStore_ReadTable(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Booking", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{
			{"id", "user_id", "status", "booked_at", "total_price"},
			{"BK0001", "USR0001", "pending", "2025-11-01T09:00:00Z", "700.00"},
			{},
			{"BK0002", "USR0002", "confirmed"},
		}})
	})

	rows, err := s.ReadTable(context.Background(), models.TableBooking)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, "700.00", rows[0].Get("total_price"))
	assert.True(t, rows[1].Empty())
	assert.Equal(t, 2, rows[2].Index)
	assert.Equal(t, "", rows[2].Get("total_price"))
}

func TestSheetsStore_ReadTableEmptySheet(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Payment", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{})
	})

	rows, err := s.ReadTable(context.Background(), models.TablePayment)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSheetsStore_AppendRow(t *testing.T) {
	mux, s := setupMockServer(t)
	var got sheets.ValueRange
	var query string
	mux.HandleFunc("/v4/spreadsheets/sid/values/Booking!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		got = decodeValueRange(t, r)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	})

	b := models.Booking{ID: "BK0001", UserID: "USR0001", Status: models.StatusPending, TotalPrice: 700}
	require.NoError(t, s.AppendRow(context.Background(), models.TableBooking, b.Values()))
	require.Len(t, got.Values, 1)
	assert.Equal(t, "BK0001", got.Values[0][0])
	assert.Equal(t, "700.00", got.Values[0][4])
	assert.Contains(t, query, "valueInputOption=RAW")
	assert.Contains(t, query, "insertDataOption=INSERT_ROWS")
}

func TestSheetsStore_UpdateRowUsesAbsoluteSheetRow(t *testing.T) {
	mux, s := setupMockServer(t)
	called := false
	// data index 1 is sheet row 3
	mux.HandleFunc("/v4/spreadsheets/sid/values/Booking!A3:E3", func(w http.ResponseWriter, r *http.Request) {
		called = true
		vr := decodeValueRange(t, r)
		assert.Equal(t, "confirmed", vr.Values[0][2])
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	b := models.Booking{ID: "BK0002", UserID: "USR0001", Status: models.StatusConfirmed, TotalPrice: 80}
	require.NoError(t, s.UpdateRow(context.Background(), models.TableBooking, 1, b.Values()))
	assert.True(t, called)
}

func TestSheetsStore_DeleteRowClearsRange(t *testing.T) {
	mux, s := setupMockServer(t)
	called := false
	mux.HandleFunc("/v4/spreadsheets/sid/values/User!A2:G2:clear", func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})

	require.NoError(t, s.DeleteRow(context.Background(), models.TableUser, 0))
	assert.True(t, called)
}

func TestSheetsStore_ErrorsAreStoreUnavailable(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sid/values/Booking", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":429,"message":"quota"}}`, http.StatusTooManyRequests)
	})

	_, err := s.ReadTable(context.Background(), models.TableBooking)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestSheetsStore_EnsureTable(t *testing.T) {
	mux, s := setupMockServer(t)
	added := false
	mux.HandleFunc("/v4/spreadsheets/sid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: "User"}},
		}})
	})
	mux.HandleFunc("/v4/spreadsheets/sid:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		added = true
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateSpreadsheetResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/sid/values/City!A1:D1", func(w http.ResponseWriter, r *http.Request) {
		vr := decodeValueRange(t, r)
		assert.Equal(t, "region", vr.Values[0][3])
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	require.NoError(t, s.EnsureTable(context.Background(), models.TableCity, models.Columns[models.TableCity]))
	assert.True(t, added)
}

func TestSheetsStore_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{SpreadsheetId: "sid"})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "I", columnLetter(9))
	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
	assert.Equal(t, "AZ", columnLetter(52))
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email": "booking@project.iam.gserviceaccount.com"}`), 0o600))

	email, err := ServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "booking@project.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
