// Package rowstore opens the configured row store backend.
package rowstore

import (
	"context"
	"fmt"
	"io"

	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/google"
	"travelbook/internal/models"
	"travelbook/internal/repository"
	"travelbook/internal/xlsx"

	"github.com/rs/zerolog"
)

// Open connects the backend named by cfg.Backend and makes sure every table
// exists with its header. The returned closer is nil for backends that hold
// no resources.
func Open(ctx context.Context, cfg config.RowStoreConfig, logger *zerolog.Logger) (domain.RowStore, io.Closer, error) {
	var (
		store  domain.RowStore
		closer io.Closer
	)
	switch cfg.Backend {
	case config.BackendGoogle:
		sheetsStore, err := google.NewSheetsStore(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("init google sheets: %w", err)
		}
		if err := sheetsStore.TestConnection(ctx); err != nil {
			if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
				logger.Error().Str("service_account", email).Msg("share the spreadsheet with this account")
			}
			return nil, nil, fmt.Errorf("google sheets connection: %w", err)
		}
		store = sheetsStore
	case config.BackendXLSX:
		fileStore, err := xlsx.Open(cfg.XLSX.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open workbook: %w", err)
		}
		store, closer = fileStore, fileStore
	case config.BackendMemory:
		store = repository.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown row store backend %q", cfg.Backend)
	}

	if initializer, ok := store.(domain.TableInitializer); ok {
		for _, table := range models.TableNames() {
			if err := initializer.EnsureTable(ctx, table, models.Columns[table]); err != nil {
				if closer != nil {
					_ = closer.Close()
				}
				return nil, nil, fmt.Errorf("ensure table %s: %w", table, err)
			}
		}
	}
	logger.Info().Str("backend", cfg.Backend).Msg("row store ready")
	return store, closer, nil
}
