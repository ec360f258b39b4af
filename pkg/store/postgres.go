package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/medichain/telemed/pkg/config"
	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/types"
)

// Postgres implements the store interfaces on top of PostgreSQL. Documents
// are kept whole in a jsonb column with the columns needed for filtering
// extracted alongside.
type Postgres struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPostgres opens a connection pool and verifies connectivity
func NewPostgres(cfg *config.DatabaseConfig, log *logger.Logger) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established")
	return &Postgres{db: sqlDB, logger: log}, nil
}

// Close closes the database connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Health checks the database connection health
func (p *Postgres) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

// InsertRecord stores a new integrity record
func (p *Postgres) InsertRecord(ctx context.Context, record *types.IntegrityRecord) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal integrity record: %w", err)
	}

	query := `
		INSERT INTO integrity_records (id, user_id, subject_type, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = p.db.ExecContext(ctx, query,
		record.ID, record.UserID, string(record.SubjectType), string(record.Status),
		doc, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert integrity record: %w", err)
	}

	return nil
}

// GetRecord retrieves an integrity record by id
func (p *Postgres) GetRecord(ctx context.Context, id string) (*types.IntegrityRecord, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM integrity_records WHERE id = $1`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integrity record: %w", err)
	}

	var record types.IntegrityRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integrity record: %w", err)
	}
	return &record, nil
}

// UpdateRecord applies mutate under a row lock so concurrent status updates
// on the same record serialize.
func (p *Postgres) UpdateRecord(ctx context.Context, id string, mutate func(*types.IntegrityRecord) error) (*types.IntegrityRecord, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var doc []byte
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM integrity_records WHERE id = $1 FOR UPDATE`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeRecordNotFound, fmt.Sprintf("integrity record not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock integrity record: %w", err)
	}

	var record types.IntegrityRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integrity record: %w", err)
	}

	if err := mutate(&record); err != nil {
		return nil, err
	}
	record.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal integrity record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE integrity_records SET status = $2, doc = $3, updated_at = $4 WHERE id = $1`,
		id, string(record.Status), updated, record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update integrity record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record update: %w", err)
	}
	return &record, nil
}

// ListRecordsByUser returns a user's integrity records, newest first
func (p *Postgres) ListRecordsByUser(ctx context.Context, userID string, limit int) ([]*types.IntegrityRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT doc FROM integrity_records WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrity records: %w", err)
	}
	defer rows.Close()

	var records []*types.IntegrityRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan integrity record: %w", err)
		}
		var record types.IntegrityRecord
		if err := json.Unmarshal(doc, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal integrity record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// InsertDiagnosis stores a new diagnosis document
func (p *Postgres) InsertDiagnosis(ctx context.Context, d *types.DiagnosisDocument) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnosis: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO diagnoses (id, user_id, doc, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.UserID, doc, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert diagnosis: %w", err)
	}
	return nil
}

// GetDiagnosis retrieves a diagnosis document by id
func (p *Postgres) GetDiagnosis(ctx context.Context, id string) (*types.DiagnosisDocument, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM diagnoses WHERE id = $1`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diagnosis: %w", err)
	}

	var d types.DiagnosisDocument
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagnosis: %w", err)
	}
	return &d, nil
}

// ListDiagnosesByUser returns a user's diagnoses, newest first
func (p *Postgres) ListDiagnosesByUser(ctx context.Context, userID string, limit int) ([]*types.DiagnosisDocument, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT doc FROM diagnoses WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	defer rows.Close()

	var docs []*types.DiagnosisDocument
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis: %w", err)
		}
		var d types.DiagnosisDocument
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnosis: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// InsertMedicine stores a new medicine catalog entry
func (p *Postgres) InsertMedicine(ctx context.Context, m *types.Medicine) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal medicine: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO medicines (id, name, popularity_score, doc, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Name, m.PopularityScore, doc, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert medicine: %w", err)
	}
	return nil
}

// GetMedicine retrieves a medicine by id
func (p *Postgres) GetMedicine(ctx context.Context, id string) (*types.Medicine, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM medicines WHERE id = $1`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}

	var m types.Medicine
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal medicine: %w", err)
	}
	return &m, nil
}

// SearchMedicines filters the catalog by condition, name and ingredients
func (p *Postgres) SearchMedicines(ctx context.Context, criteria *types.MedicineSearchCriteria) ([]*types.Medicine, error) {
	query := `SELECT doc FROM medicines WHERE 1=1`
	var args []interface{}

	if criteria.Condition != "" {
		args = append(args, "%"+criteria.Condition+"%")
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(doc->'conditions') c WHERE c ILIKE $%d)`, len(args))
	}
	if criteria.Name != "" {
		args = append(args, "%"+criteria.Name+"%")
		query += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	for _, ing := range criteria.Ingredients {
		args = append(args, ing)
		query += fmt.Sprintf(` AND doc->'ingredients' ? $%d`, len(args))
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	args = append(args, criteria.Offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	return p.queryMedicines(ctx, query, args...)
}

// ListPopularMedicines returns the catalog ordered by popularity score
func (p *Postgres) ListPopularMedicines(ctx context.Context, limit int) ([]*types.Medicine, error) {
	return p.queryMedicines(ctx,
		`SELECT doc FROM medicines ORDER BY popularity_score DESC LIMIT $1`, limit)
}

// FindAlternatives returns medicines sharing ingredients or conditions with
// the given medicine, excluding the medicine itself.
func (p *Postgres) FindAlternatives(ctx context.Context, id string, activeIngredients, conditions []string, limit int) ([]*types.Medicine, error) {
	query := `SELECT doc FROM medicines WHERE id <> $1 AND (`
	args := []interface{}{id}

	clauses := 0
	for _, ing := range activeIngredients {
		args = append(args, ing)
		if clauses > 0 {
			query += " OR "
		}
		query += fmt.Sprintf(`doc->'active_ingredients' ? $%d`, len(args))
		clauses++
	}
	for _, cond := range conditions {
		args = append(args, cond)
		if clauses > 0 {
			query += " OR "
		}
		query += fmt.Sprintf(`doc->'conditions' ? $%d`, len(args))
		clauses++
	}
	if clauses == 0 {
		return nil, nil
	}

	args = append(args, limit)
	query += fmt.Sprintf(`) LIMIT $%d`, len(args))

	return p.queryMedicines(ctx, query, args...)
}

// MarkMedicineVerified flips the ledger-verified flag on a medicine
func (p *Postgres) MarkMedicineVerified(ctx context.Context, id, recordID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE medicines
		 SET doc = jsonb_set(jsonb_set(doc, '{verified_on_ledger}', 'true'), '{ledger_record_id}', to_jsonb($2::text))
		 WHERE id = $1`,
		id, recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark medicine verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("medicine not found: %s", id))
	}
	return nil
}

func (p *Postgres) queryMedicines(ctx context.Context, query string, args ...interface{}) ([]*types.Medicine, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query medicines: %w", err)
	}
	defer rows.Close()

	var meds []*types.Medicine
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		var m types.Medicine
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal medicine: %w", err)
		}
		meds = append(meds, &m)
	}
	return meds, rows.Err()
}
