package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"dialerctl/internal/domain"
	"dialerctl/pkg/apperrors"
)

// MySQL is the durable Repository Port implementation, persisting the
// two-table schema from spec §6 (campaigns, leads) via raw SQL over
// database/sql, the same style this codebase has always used for its
// relational storage layer.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens a connection pool against dsn and verifies it.
func NewMySQL(dsn string, maxOpen, maxIdle int) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return &MySQL{db: db}, nil
}

func (r *MySQL) Close() error { return r.db.Close() }

const createCampaignsTable = `
CREATE TABLE IF NOT EXISTS campaigns (
	id VARCHAR(36) PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	description VARCHAR(255),
	status VARCHAR(16) NOT NULL,
	dial_ratio DOUBLE NOT NULL,
	caller_id VARCHAR(20),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	started_at DATETIME NULL,
	completed_at DATETIME NULL
)`

const createLeadsTable = `
CREATE TABLE IF NOT EXISTS leads (
	id VARCHAR(36) PRIMARY KEY,
	campaign_id VARCHAR(36) NOT NULL,
	phone_number VARCHAR(20) NOT NULL,
	name VARCHAR(255),
	company VARCHAR(255),
	email VARCHAR(255),
	notes TEXT,
	status VARCHAR(16) NOT NULL,
	outcome VARCHAR(64),
	fail_reason VARCHAR(64),
	retry_count INT NOT NULL DEFAULT 0,
	max_retries INT NOT NULL DEFAULT 3,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	last_called_at DATETIME NULL,
	call_history JSON,
	UNIQUE KEY uniq_campaign_phone (campaign_id, phone_number),
	KEY idx_campaign_id (campaign_id),
	CONSTRAINT fk_leads_campaign FOREIGN KEY (campaign_id) REFERENCES campaigns(id) ON DELETE CASCADE
)`

// Migrate creates the two tables if absent.
func (r *MySQL) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCampaignsTable); err != nil {
		return fmt.Errorf("creating campaigns table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createLeadsTable); err != nil {
		return fmt.Errorf("creating leads table: %w", err)
	}
	return nil
}

func (r *MySQL) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, status, dial_ratio, caller_id, created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.CurrentState(), c.DialRatio, c.CallerID, c.CreatedAt, c.UpdatedAt, c.StartedAt, c.CompletedAt)
	if err != nil {
		return fmt.Errorf("creating campaign: %w", err)
	}
	return nil
}

func (r *MySQL) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `
		SELECT id, name, status, dial_ratio, caller_id, created_at, updated_at, started_at, completed_at
		FROM campaigns WHERE id = ?
	`
	c, err := r.scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachLeads(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *MySQL) scanCampaign(row *sql.Row) (*domain.Campaign, error) {
	var (
		id, name, status, callerID sql.NullString
		dialRatio                  float64
		createdAt, updatedAt       sql.NullTime
		startedAt, completedAt     sql.NullTime
	)
	err := row.Scan(&id, &name, &status, &dialRatio, &callerID, &createdAt, &updatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("campaign", "")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning campaign: %w", err)
	}

	return domain.Rehydrate(
		id.String, name.String, domain.CampaignState(status.String), callerID.String, dialRatio,
		createdAt.Time, updatedAt.Time, nullTimePtr(startedAt), nullTimePtr(completedAt), 0,
	), nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *MySQL) ListCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	query := `
		SELECT id, name, status, dial_ratio, caller_id, created_at, updated_at, started_at, completed_at
		FROM campaigns ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		var (
			id, name, status, callerID sql.NullString
			dialRatio                  float64
			createdAt, updatedAt       sql.NullTime
			startedAt, completedAt     sql.NullTime
		)
		if err := rows.Scan(&id, &name, &status, &dialRatio, &callerID, &createdAt, &updatedAt, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning campaign row: %w", err)
		}
		c := domain.Rehydrate(id.String, name.String, domain.CampaignState(status.String), callerID.String, dialRatio,
			createdAt.Time, updatedAt.Time, nullTimePtr(startedAt), nullTimePtr(completedAt), 0)
		out = append(out, c)
	}
	return out, nil
}

func (r *MySQL) ListRunningCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	all, err := r.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Campaign
	for _, c := range all {
		if c.CurrentState() == domain.CampaignRunning {
			if err := r.attachLeads(ctx, c); err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MySQL) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
		UPDATE campaigns SET name=?, status=?, dial_ratio=?, caller_id=?, updated_at=?, started_at=?, completed_at=?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, c.Name, c.CurrentState(), c.DialRatio, c.CallerID, c.UpdatedAt,
		c.StartedAt, c.CompletedAt, c.ID)
	if err != nil {
		return fmt.Errorf("updating campaign: %w", err)
	}
	return nil
}

func (r *MySQL) attachLeads(ctx context.Context, c *domain.Campaign) error {
	leads, err := r.ListLeads(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, l := range leads {
		c.AttachLead(l)
	}
	return nil
}

func (r *MySQL) AddLead(ctx context.Context, campaignID string, lead *domain.Lead) error {
	historyJSON, err := json.Marshal(lead.History)
	if err != nil {
		return fmt.Errorf("marshaling call history: %w", err)
	}

	query := `
		INSERT INTO leads (id, campaign_id, phone_number, name, company, email, notes, status,
			outcome, fail_reason, retry_count, max_retries, created_at, updated_at, last_called_at, call_history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		lead.ID, campaignID, lead.Phone, lead.Name, lead.Company, lead.Email, lead.Notes, lead.State,
		lead.Outcome, lead.FailReason, lead.RetryCount, lead.MaxRetries, lead.CreatedAt, lead.UpdatedAt,
		lead.LastCalled, historyJSON,
	)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return apperrors.DuplicatePhone(lead.Phone)
		}
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

func (r *MySQL) ListLeads(ctx context.Context, campaignID string) ([]*domain.Lead, error) {
	query := `
		SELECT id, campaign_id, phone_number, name, company, email, notes, status, outcome,
			fail_reason, retry_count, max_retries, created_at, updated_at, last_called_at, call_history
		FROM leads WHERE campaign_id = ? ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var out []*domain.Lead
	for rows.Next() {
		var (
			id, cid, phone, name, company, email, notes, status, outcome, failReason sql.NullString
			retryCount, maxRetries                                                   int
			createdAt, updatedAt, lastCalled                                         sql.NullTime
			historyJSON                                                              []byte
		)
		if err := rows.Scan(&id, &cid, &phone, &name, &company, &email, &notes, &status, &outcome,
			&failReason, &retryCount, &maxRetries, &createdAt, &updatedAt, &lastCalled, &historyJSON); err != nil {
			return nil, fmt.Errorf("scanning lead row: %w", err)
		}

		var history []domain.LeadAttempt
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &history); err != nil {
				return nil, fmt.Errorf("unmarshaling call history: %w", err)
			}
		}

		lead := domain.RehydrateLead(id.String, cid.String, phone.String, domain.LeadState(status.String),
			outcome.String, failReason.String, retryCount, maxRetries, createdAt.Time, updatedAt.Time,
			nullTimePtr(lastCalled), history)
		lead.Name, lead.Company, lead.Email, lead.Notes = name.String, company.String, email.String, notes.String
		out = append(out, lead)
	}
	return out, nil
}

func (r *MySQL) CountLeads(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE campaign_id = ?`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting leads: %w", err)
	}
	return n, nil
}

func (r *MySQL) CountLeadsByStatus(ctx context.Context, campaignID string) (map[domain.LeadState]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM leads WHERE campaign_id = ? GROUP BY status`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("counting leads by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.LeadState]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[domain.LeadState(status)] = n
	}
	return counts, nil
}

func (r *MySQL) ExistingPhoneNumbers(ctx context.Context, campaignID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT phone_number FROM leads WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("querying phone numbers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("scanning phone number: %w", err)
		}
		out[phone] = true
	}
	return out, nil
}

func (r *MySQL) UpdateLead(ctx context.Context, lead *domain.Lead) error {
	historyJSON, err := json.Marshal(lead.History)
	if err != nil {
		return fmt.Errorf("marshaling call history: %w", err)
	}

	query := `
		UPDATE leads SET status=?, outcome=?, fail_reason=?, retry_count=?, updated_at=?,
			last_called_at=?, call_history=?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, query, lead.State, lead.Outcome, lead.FailReason, lead.RetryCount,
		lead.UpdatedAt, lead.LastCalled, historyJSON, lead.ID)
	if err != nil {
		return fmt.Errorf("updating lead: %w", err)
	}
	return nil
}
