package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// NormalizedStore decomposes history payload into the typed columns of the
// history table. SQL NULL means "field absent", never zero.
type NormalizedStore struct {
	baseStore
}

// NewNormalizedStore wraps an open database initialized in normalized mode.
func NewNormalizedStore(db *sql.DB, logger *slog.Logger) *NormalizedStore {
	return &NormalizedStore{baseStore: baseStore{db: db, logger: logger}}
}

const historyColumns = `
	temp_high, temp_low, temp_mean, dew_point, humidity,
	precip_chance, precip_type, precip_amount,
	wind_speed, wind_gust, wind_dir,
	cloud_cover, pressure, uv_index,
	sunrise_t, sunset_t, moon_phase, visibility, description`

func (s *NormalizedStore) ReadHistories(ctx context.Context, alias string, r domain.DateRange) ([]domain.History, error) {
	lid, err := locationID(ctx, s.db, alias)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.date, `+historyColumns+`
		FROM metadata m JOIN history h ON h.metadata_id = m.id
		WHERE m.location_id = ? AND m.date >= ? AND m.date <= ?
		ORDER BY m.date`,
		lid, r.From.String(), r.Thru.String())
	if err != nil {
		return nil, fmt.Errorf("read history rows for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	defer rows.Close()

	var histories []domain.History
	for rows.Next() {
		history, err := scanHistory(alias, rows)
		if err != nil {
			return nil, err
		}
		histories = append(histories, history)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history rows for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return histories, nil
}

func (s *NormalizedStore) WriteHistory(ctx context.Context, history domain.History) error {
	lid, err := locationID(ctx, s.db, history.Alias)
	if err != nil {
		return err
	}
	// Size bookkeeping uses the canonical JSON length so summaries agree
	// with the other backends; the row itself stores roughly that much.
	data, err := history.Encode()
	if err != nil {
		return err
	}
	md := domain.Metadata{
		Date:      history.Date,
		Size:      int64(len(data)),
		StoreSize: int64(len(data)),
		MTime:     domain.Now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write for %q: %v: %w", history.Alias, err, domain.ErrStorage)
	}
	defer tx.Rollback()

	mid, err := upsertMetadata(ctx, tx, lid, md)
	if err != nil {
		return err
	}
	if err := replaceHistoryRow(ctx, tx, mid, history); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write for %q: %v: %w", history.Alias, err, domain.ErrStorage)
	}
	return nil
}

// replaceHistoryRow swaps the typed payload row under a metadata id.
func replaceHistoryRow(ctx context.Context, q querier, mid int64, h domain.History) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM history WHERE metadata_id = ?`, mid); err != nil {
		return fmt.Errorf("replace history row: %v: %w", err, domain.ErrStorage)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO history (metadata_id, `+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mid,
		h.TemperatureHigh, h.TemperatureLow, h.TemperatureMean, h.DewPoint, h.Humidity,
		h.PrecipitationChance, h.PrecipitationType, h.PrecipitationAmount,
		h.WindSpeed, h.WindGust, h.WindDirection,
		h.CloudCover, h.Pressure, h.UVIndex,
		h.Sunrise, h.Sunset, h.MoonPhase, h.Visibility, h.Description)
	if err != nil {
		return fmt.Errorf("insert history row: %v: %w", err, domain.ErrStorage)
	}
	return nil
}

// scanHistory rebuilds a history from one joined row, keeping NULL as nil.
func scanHistory(alias string, rows *sql.Rows) (domain.History, error) {
	var (
		dateStr                                          string
		tempHigh, tempLow, tempMean, dewPoint, humidity  sql.NullFloat64
		precipChance, precipAmount                       sql.NullFloat64
		precipType, description                          sql.NullString
		windSpeed, windGust                              sql.NullFloat64
		windDir, sunrise, sunset                         sql.NullInt64
		cloudCover, pressure, uvIndex                    sql.NullFloat64
		moonPhase, visibility                            sql.NullFloat64
	)
	err := rows.Scan(&dateStr,
		&tempHigh, &tempLow, &tempMean, &dewPoint, &humidity,
		&precipChance, &precipType, &precipAmount,
		&windSpeed, &windGust, &windDir,
		&cloudCover, &pressure, &uvIndex,
		&sunrise, &sunset, &moonPhase, &visibility, &description)
	if err != nil {
		return domain.History{}, fmt.Errorf("scan history row for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		return domain.History{}, fmt.Errorf("history row date %q: %w", dateStr, domain.ErrCorruptDocument)
	}
	return domain.History{
		Alias:               alias,
		Date:                date,
		TemperatureHigh:     nullFloat(tempHigh),
		TemperatureLow:      nullFloat(tempLow),
		TemperatureMean:     nullFloat(tempMean),
		DewPoint:            nullFloat(dewPoint),
		Humidity:            nullFloat(humidity),
		PrecipitationChance: nullFloat(precipChance),
		PrecipitationType:   nullString(precipType),
		PrecipitationAmount: nullFloat(precipAmount),
		WindSpeed:           nullFloat(windSpeed),
		WindGust:            nullFloat(windGust),
		WindDirection:       nullInt(windDir),
		CloudCover:          nullFloat(cloudCover),
		Pressure:            nullFloat(pressure),
		UVIndex:             nullFloat(uvIndex),
		Sunrise:             nullInt(sunrise),
		Sunset:              nullInt(sunset),
		MoonPhase:           nullFloat(moonPhase),
		Visibility:          nullFloat(visibility),
		Description:         nullString(description),
	}, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
