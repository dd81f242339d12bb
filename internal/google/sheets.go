package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore is a row store over one spreadsheet with one sheet per table.
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

// NewSheetsStore authenticates with a service account credentials file.
func NewSheetsStore(ctx context.Context, credentialsFile, spreadsheetID string, timeout time.Duration) (*SheetsStore, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewSheetsStoreWithService(srv, spreadsheetID, timeout), nil
}

// NewSheetsStoreWithService wraps an already configured Sheets client.
func NewSheetsStoreWithService(srv *sheets.Service, spreadsheetID string, timeout time.Duration) *SheetsStore {
	return &SheetsStore{service: srv, spreadsheetID: spreadsheetID, timeout: timeout}
}

// ServiceAccountEmail returns the client_email of a credentials file, the
// address the spreadsheet has to be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// TestConnection reads the spreadsheet metadata.
func (s *SheetsStore) TestConnection(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (s *SheetsStore) ReadTable(ctx context.Context, table string) ([]models.Row, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, table).Context(ctx).Do()
	if err != nil {
		return nil, domain.StoreError("read", table, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	header := toStrings(resp.Values[0])
	rows := make([]models.Row, 0, len(resp.Values)-1)
	for i, raw := range resp.Values[1:] {
		rows = append(rows, models.NewRow(i, header, toStrings(raw)))
	}
	return rows, nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, table string, values []interface{}) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	valueRange := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, table+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return domain.StoreError("append", table, err)
}

func (s *SheetsStore) UpdateRow(ctx context.Context, table string, index int, values []interface{}) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := models.SheetRow(index)
	rangeData := fmt.Sprintf("%s!A%d:%s%d", table, row, columnLetter(len(values)), row)
	valueRange := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return domain.StoreError("update", table, err)
}

// DeleteRow clears the row in place so the indices of later rows stay valid.
func (s *SheetsStore) DeleteRow(ctx context.Context, table string, index int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := models.SheetRow(index)
	width := len(models.Columns[table])
	if width == 0 {
		width = 26
	}
	rangeData := fmt.Sprintf("%s!A%d:%s%d", table, row, columnLetter(width), row)
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return domain.StoreError("delete", table, err)
}

// EnsureTable adds the sheet when missing and writes its header row.
func (s *SheetsStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return domain.StoreError("describe", table, err)
	}

	exists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == table {
			exists = true
			break
		}
	}

	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: table}},
			}},
		}
		if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return domain.StoreError("create", table, err)
		}
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	rangeData := fmt.Sprintf("%s!A1:%s1", table, columnLetter(len(columns)))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{Values: [][]interface{}{header}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return domain.StoreError("header", table, err)
}

func (s *SheetsStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// columnLetter converts a 1-based column number to its A1 letter form.
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

func toStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = models.CellString(c)
	}
	return out
}
