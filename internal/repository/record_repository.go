package repository

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/database"
	"github.com/stwalsh4118/fieldtrack/internal/models"
)

// RecordRepository reads a job's property records for one file version.
type RecordRepository interface {
	// Count returns how many records the file version holds.
	Count(ctx context.Context, jobID string, fileVersion int) (int, error)

	// FetchPage returns up to limit records starting at offset, in block/lot
	// order. A short page means the end was reached.
	FetchPage(ctx context.Context, jobID string, fileVersion, offset, limit int) ([]models.PropertyRecord, error)
}

type recordRepository struct {
	db *database.Database
}

// NewRecordRepository creates a RecordRepository backed by property_records.
func NewRecordRepository(db *database.Database) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Count(ctx context.Context, jobID string, fileVersion int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM property_records
		WHERE job_id = $1 AND file_version = $2
	`

	var n int
	if err := r.db.Pool.QueryRow(ctx, query, jobID, fileVersion).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "count property records for job %s version %d", jobID, fileVersion)
	}
	return n, nil
}

func (r *recordRepository) FetchPage(ctx context.Context, jobID string, fileVersion, offset, limit int) ([]models.PropertyRecord, error) {
	query := `
		SELECT
			property_composite_key,
			property_block,
			property_lot,
			property_qualifier,
			property_addl_card,
			property_location,
			property_m4_class,
			inspection_measure_by,
			inspection_measure_date,
			inspection_info_by,
			inspection_list_by,
			inspection_list_date,
			inspection_price_by,
			inspection_price_date,
			values_mod_improvement,
			source_file_name
		FROM property_records
		WHERE job_id = $1 AND file_version = $2
		ORDER BY property_block, property_lot, property_composite_key
		OFFSET $3
		LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query, jobID, fileVersion, offset, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "query property records for job %s version %d at offset %d", jobID, fileVersion, offset)
	}
	defer rows.Close()

	records := make([]models.PropertyRecord, 0, limit)
	for rows.Next() {
		var (
			key, block, lot, qualifier, card, location, class *string
			measureBy, infoBy, listBy, priceBy, sourceFile    *string
			measureDate, listDate, priceDate                  *time.Time
			improvement                                       *float64
		)
		err := rows.Scan(
			&key,
			&block,
			&lot,
			&qualifier,
			&card,
			&location,
			&class,
			&measureBy,
			&measureDate,
			&infoBy,
			&listBy,
			&listDate,
			&priceBy,
			&priceDate,
			&improvement,
			&sourceFile,
		)
		if err != nil {
			return nil, eris.Wrap(err, "scan property record row")
		}

		records = append(records, models.PropertyRecord{
			JobID:           jobID,
			FileVersion:     fileVersion,
			CompositeKey:    deref(key),
			Block:           deref(block),
			Lot:             deref(lot),
			Qualifier:       deref(qualifier),
			Card:            deref(card),
			Location:        deref(location),
			PropertyClass:   deref(class),
			InspectorCode:   deref(measureBy),
			MeasureDate:     measureDate,
			InfoByCode:      deref(infoBy),
			ListerCode:      deref(listBy),
			ListDate:        listDate,
			PriceByCode:     deref(priceBy),
			PriceDate:       priceDate,
			SourceFileName:  deref(sourceFile),
			ZeroImprovement: improvement != nil && *improvement == 0,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate property record rows")
	}

	return records, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
