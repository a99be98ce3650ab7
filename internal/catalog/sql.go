package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"                // registers the "postgres" driver
)

// ErrUnavailable marks failures reaching the card database.
var ErrUnavailable = errors.New("card database unavailable")

// SQL drivers accepted by OpenSQL.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

const schema = `
create table if not exists cards (
	id           bigserial primary key,
	scryfall_id  text unique,
	name         text not null,
	set_         text not null,
	rarity       text,
	scryfall_uri text,
	image_uris   jsonb
);
create index if not exists cards_set_name on cards (set_, name);
create table if not exists seventeen_lands (
	card_id   bigint primary key references cards(id),
	card_set  text not null,
	name      text,
	color     text,
	rarity    text,
	seen      integer,
	alsa      double precision,
	picked    integer,
	ata       double precision,
	gp        integer,
	gp_p      double precision,
	gp_wr     double precision,
	oh        integer,
	oh_wr     double precision,
	gd        integer,
	gd_wr     double precision,
	gih       integer,
	gih_wr    double precision,
	gns       integer,
	gns_wr    double precision,
	iwd       double precision
);`

// SQLStore is a Store backed by PostgreSQL through database/sql.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL connects to the card database with the given driver ("pgx" or "postgres").
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	if driver != DriverPgx && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return NewSQLStore(db), nil
}

// NewSQLStore wraps an already opened database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the card and rating tables if they are missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return classify(fmt.Errorf("failed to create schema: %w", err))
	}
	return nil
}

// List implements Catalog.
func (s *SQLStore) List(ctx context.Context, set string, p Predicate) ([]Card, error) {
	var pattern string
	switch p.Kind {
	case NameContains:
		pattern = "%" + likeEscape(p.Text) + "%"
	case NamePrefix:
		pattern = likeEscape(p.Text) + "%"
	default:
		return nil, fmt.Errorf("unsupported predicate: %v", p)
	}

	const q = `
select id,
       coalesce(scryfall_id, ''),
       name,
       set_,
       coalesce(rarity, ''),
       coalesce(scryfall_uri, ''),
       coalesce(image_uris::text, '')
from cards
where set_ = $1 and name like $2 escape '\'
order by id`

	rows, err := s.db.QueryContext(ctx, q, set, pattern)
	if err != nil {
		return nil, classify(fmt.Errorf("card query %v: %w", p, err))
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var c Card
		var uris string
		if err := rows.Scan(&c.ID, &c.ScryfallID, &c.Name, &c.Set, &c.Rarity, &c.ScryfallURI, &uris); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if uris != "" {
			if err := json.Unmarshal([]byte(uris), &c.ImageURIs); err != nil {
				return nil, fmt.Errorf("card %d image uris: %w", c.ID, err)
			}
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return cards, nil
}

// UpsertRating implements RatingStore.
func (s *SQLStore) UpsertRating(ctx context.Context, r Rating) error {
	const q = `
insert into seventeen_lands (card_id, card_set, name, color, rarity, seen, alsa, picked, ata,
	gp, gp_p, gp_wr, oh, oh_wr, gd, gd_wr, gih, gih_wr, gns, gns_wr, iwd)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
on conflict (card_id) do update set
	card_set = excluded.card_set, name = excluded.name, color = excluded.color,
	rarity = excluded.rarity, seen = excluded.seen, alsa = excluded.alsa,
	picked = excluded.picked, ata = excluded.ata, gp = excluded.gp, gp_p = excluded.gp_p,
	gp_wr = excluded.gp_wr, oh = excluded.oh, oh_wr = excluded.oh_wr, gd = excluded.gd,
	gd_wr = excluded.gd_wr, gih = excluded.gih, gih_wr = excluded.gih_wr,
	gns = excluded.gns, gns_wr = excluded.gns_wr, iwd = excluded.iwd`

	_, err := s.db.ExecContext(ctx, q,
		r.CardID, r.CardSet, r.Name, r.Color, r.Rarity, r.Seen, r.ALSA, r.Picked, r.ATA,
		r.GP, r.GPPercent, r.GPWR, r.OH, r.OHWR, r.GD, r.GDWR, r.GIH, r.GIHWR, r.GNS, r.GNSWR, r.IWD)
	if err != nil {
		return classify(fmt.Errorf("upsert rating for card %d: %w", r.CardID, err))
	}
	return nil
}

// Ratings implements RatingStore.
func (s *SQLStore) Ratings(ctx context.Context, set string, cardIDs []int64) ([]Rating, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(cardIDs)+1)
	args = append(args, set)
	holders := make([]string, len(cardIDs))
	for i, id := range cardIDs {
		args = append(args, id)
		holders[i] = fmt.Sprintf("$%d", i+2)
	}

	q := `
select card_id, card_set, coalesce(name, ''), coalesce(color, ''), coalesce(rarity, ''),
       coalesce(seen, 0), coalesce(alsa, 0), coalesce(picked, 0), coalesce(ata, 0),
       coalesce(gp, 0), coalesce(gp_p, 0), coalesce(gp_wr, 0), coalesce(oh, 0), coalesce(oh_wr, 0),
       coalesce(gd, 0), coalesce(gd_wr, 0), coalesce(gih, 0), coalesce(gih_wr, 0),
       coalesce(gns, 0), coalesce(gns_wr, 0), coalesce(iwd, 0)
from seventeen_lands
where card_set = $1 and card_id in (` + strings.Join(holders, ", ") + `)
order by card_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("rating query: %w", err))
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.CardID, &r.CardSet, &r.Name, &r.Color, &r.Rarity,
			&r.Seen, &r.ALSA, &r.Picked, &r.ATA, &r.GP, &r.GPPercent, &r.GPWR,
			&r.OH, &r.OHWR, &r.GD, &r.GDWR, &r.GIH, &r.GIHWR, &r.GNS, &r.GNSWR, &r.IWD); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// likeEscape quotes LIKE wildcards so OCR text matches literally.
func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Postgres error classes that mean the database cannot serve queries.
var unavailableClasses = []string{
	"08", // connection exception
	"53", // insufficient resources
	"57", // operator intervention
	"3D", // invalid catalog name
}

// classify tags connection-level failures with ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}

	for _, class := range unavailableClasses {
		if strings.HasPrefix(code, class) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return err
}
