package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/database"
)

// ErrJobNotFound is returned when a job id matches no row.
var ErrJobNotFound = errors.New("job not found")

// StoredConfig is a job's category configuration as persisted.
type StoredConfig struct {
	UpdatedAt *time.Time
	Config    codes.CategoryConfig
	// Vendor is the job's vendor tag, known even when no configuration has
	// been saved yet.
	Vendor codes.VendorDialect
	Found  bool
}

// JobRepository reads and writes the per-job category configuration and
// code file.
type JobRepository interface {
	// LoadConfig returns the job's saved configuration. Found is false when
	// none has been saved.
	LoadConfig(ctx context.Context, jobID string) (StoredConfig, error)

	// SaveConfig canonicalizes cfg and stores it with the vendor tag. A
	// malformed configuration is rejected with *codes.ConfigError.
	SaveConfig(ctx context.Context, jobID string, cfg codes.CategoryConfig) (codes.CategoryConfig, error)

	// CodeDefinitions returns the InfoBy definitions from the job's parsed
	// code file.
	CodeDefinitions(ctx context.Context, jobID string) (codes.VendorDialect, []codes.CodeDefinition, error)
}

type jobRepository struct {
	db  *database.Database
	now func() time.Time
}

// NewJobRepository creates a JobRepository backed by the jobs table.
func NewJobRepository(db *database.Database) JobRepository {
	return &jobRepository{db: db, now: time.Now}
}

// storedCategoryConfig is the JSON document kept in
// jobs.infoby_category_config.
type storedCategoryConfig struct {
	codes.CategoryConfig
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

func (r *jobRepository) LoadConfig(ctx context.Context, jobID string) (StoredConfig, error) {
	query := `
		SELECT vendor_type, infoby_category_config
		FROM jobs
		WHERE id = $1
	`

	var vendorTag *string
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(&vendorTag, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredConfig{}, eris.Wrapf(ErrJobNotFound, "job %s", jobID)
		}
		return StoredConfig{}, eris.Wrapf(err, "load category config for job %s", jobID)
	}

	var out StoredConfig
	if tag := deref(vendorTag); tag != "" {
		if v, err := codes.ParseVendor(tag); err == nil {
			out.Vendor = v
		}
	}

	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}

	var doc storedCategoryConfig
	if err := json.Unmarshal(raw, &doc); err != nil {
		return StoredConfig{}, eris.Wrapf(err, "decode category config for job %s", jobID)
	}
	if doc.Vendor == codes.VendorUnknown {
		doc.Vendor = out.Vendor
	}
	out.Config = doc.CategoryConfig
	out.UpdatedAt = doc.LastUpdated
	out.Found = true
	if out.Vendor == codes.VendorUnknown {
		out.Vendor = doc.Vendor
	}
	return out, nil
}

func (r *jobRepository) SaveConfig(ctx context.Context, jobID string, cfg codes.CategoryConfig) (codes.CategoryConfig, error) {
	if err := cfg.Validate(); err != nil {
		return codes.CategoryConfig{}, err
	}
	canon := cfg.Canonicalize()

	updated := r.now().UTC()
	raw, err := json.Marshal(storedCategoryConfig{CategoryConfig: canon, LastUpdated: &updated})
	if err != nil {
		return codes.CategoryConfig{}, eris.Wrap(err, "encode category config")
	}

	query := `
		UPDATE jobs
		SET infoby_category_config = $2, vendor_type = $3
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, jobID, raw, canon.Vendor.String())
	if err != nil {
		return codes.CategoryConfig{}, eris.Wrapf(err, "save category config for job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return codes.CategoryConfig{}, eris.Wrapf(ErrJobNotFound, "job %s", jobID)
	}
	return canon, nil
}

func (r *jobRepository) CodeDefinitions(ctx context.Context, jobID string) (codes.VendorDialect, []codes.CodeDefinition, error) {
	query := `
		SELECT vendor_type, parsed_code_definitions
		FROM jobs
		WHERE id = $1
	`

	var vendorTag *string
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(&vendorTag, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return codes.VendorUnknown, nil, eris.Wrapf(ErrJobNotFound, "job %s", jobID)
		}
		return codes.VendorUnknown, nil, eris.Wrapf(err, "load code definitions for job %s", jobID)
	}

	vendor, err := codes.ParseVendor(deref(vendorTag))
	if err != nil {
		return codes.VendorUnknown, nil, eris.Wrapf(err, "job %s", jobID)
	}

	defs, err := codes.ExtractDefinitions(vendor, raw)
	if err != nil {
		return vendor, nil, eris.Wrapf(err, "job %s", jobID)
	}
	return vendor, defs, nil
}
