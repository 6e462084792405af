package contacts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS contacts (
	owner       TEXT        NOT NULL DEFAULT '',
	company_key TEXT        NOT NULL,
	company     TEXT        NOT NULL,
	website     TEXT        NOT NULL DEFAULT '',
	emails      TEXT[]      NOT NULL DEFAULT '{}',
	phone       TEXT        NOT NULL DEFAULT '',
	source      TEXT        NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, company_key)
)`

const upsertContact = `INSERT INTO contacts (owner, company_key, company, website, emails, phone, source, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (owner, company_key) DO UPDATE SET
	website    = CASE WHEN contacts.website = '' THEN EXCLUDED.website ELSE contacts.website END,
	phone      = CASE WHEN contacts.phone = '' THEN EXCLUDED.phone ELSE contacts.phone END,
	emails     = ARRAY(
		SELECT e FROM unnest(contacts.emails || EXCLUDED.emails) WITH ORDINALITY AS t(e, n)
		GROUP BY e ORDER BY min(n)
	),
	source     = EXCLUDED.source,
	updated_at = now()`

const listContacts = `SELECT owner, company, website, emails, phone, source, updated_at
FROM contacts
WHERE owner = $1
ORDER BY updated_at DESC, company_key`

// Postgres stores contacts in the contacts table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the contacts table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create contacts table: %w", err)
	}
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, c Contact) error {
	c = c.normalized()
	_, err := p.pool.Exec(ctx, upsertContact, c.Owner, c.Key(), c.Company, c.Website, c.Emails, c.Phone, c.Source)
	if err != nil {
		return fmt.Errorf("upsert contact %q: %w", c.Company, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, owner string) ([]Contact, error) {
	rows, err := p.pool.Query(ctx, listContacts, owner)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var result []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Owner, &c.Company, &c.Website, &c.Emails, &c.Phone, &c.Source, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return result, nil
}
