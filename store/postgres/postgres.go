/*
Package postgres provides a PostgreSQL-backed implementation of ledger.TxStore.

PURPOSE:
  Production store. Same tables as store/sqlite, with native NUMERIC and
  TIMESTAMPTZ columns and real row locks.

ROW LOCKING:
  Inside WithTx, GetParty reads with SELECT ... FOR UPDATE. A second writer
  from another process blocks on the row until the first commits, then sees
  the new version. The version CAS in SetBalance still guards writers that
  skip the lock.

DRIVER:
  database/sql over pgx (github.com/jackc/pgx/v5/stdlib). Constraint
  violations are recognised through *pgconn.PgError codes.

USAGE:
  store, err := postgres.Open(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/warp/party-ledger/ledger"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNumericOutOfRange   = "22003"
	codeSerializationFailed = "40001"
	codeDeadlockDetected    = "40P01"
)

// Store implements ledger.TxStore using PostgreSQL.
type Store struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Open connects to connStr, checks the connection and creates the schema.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// New wraps an open database. The schema is not touched.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		address TEXT,
		gst_number TEXT,
		pan_number TEXT,
		party_type TEXT NOT NULL,
		opening_balance NUMERIC(19,2) NOT NULL,
		balance NUMERIC(19,2) NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parties_merchant ON parties(merchant_id, name);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_parties_merchant_name
		ON parties(merchant_id, name) WHERE is_active;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_parties_merchant_phone
		ON parties(merchant_id, phone) WHERE is_active AND phone IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_parties_merchant_email
		ON parties(merchant_id, email) WHERE is_active AND email IS NOT NULL;

	CREATE TABLE IF NOT EXISTS party_entries (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		merchant_id TEXT NOT NULL,
		party_id TEXT NOT NULL REFERENCES parties(id),
		kind TEXT NOT NULL,
		amount NUMERIC(19,2) NOT NULL,
		delta NUMERIC(19,2) NOT NULL,
		balance_after NUMERIC(19,2) NOT NULL,
		transaction_date TIMESTAMPTZ NOT NULL,
		document_id TEXT,
		document_number TEXT,
		document_balance NUMERIC(19,2),
		description TEXT,
		reversal BOOLEAN NOT NULL DEFAULT FALSE,
		reverses_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_party_entries_party_seq ON party_entries(party_id, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_party_entries_document
		ON party_entries(party_id, kind, document_id) WHERE document_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_party_entries_date ON party_entries(party_id, transaction_date);
	`)
	return err
}

// =============================================================================
// PARTY STORE
// =============================================================================

const partyColumns = `id, merchant_id, name, phone, email, address, gst_number, pan_number, ` +
	`party_type, opening_balance, balance, version, is_active, created_at, updated_at`

func (s *Store) CreateParty(ctx context.Context, p ledger.Party) error {
	return createParty(ctx, s.db, p)
}

func (s *Store) GetParty(ctx context.Context, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, s.db, id, false)
}

func (s *Store) ListParties(ctx context.Context, merchantID ledger.MerchantID) ([]ledger.Party, error) {
	return listParties(ctx, s.db, merchantID)
}

func (s *Store) SearchParties(ctx context.Context, merchantID ledger.MerchantID, term string) ([]ledger.Party, error) {
	return searchParties(ctx, s.db, merchantID, term)
}

func (s *Store) UpdateParty(ctx context.Context, p ledger.Party) error {
	return updateParty(ctx, s.db, p)
}

func (s *Store) DeactivateParty(ctx context.Context, id ledger.PartyID, at time.Time) error {
	return deactivateParty(ctx, s.db, id, at)
}

func (s *Store) SetBalance(ctx context.Context, id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	return setBalance(ctx, s.db, id, expectedVersion, b, at)
}

func createParty(ctx context.Context, q querier, p ledger.Party) error {
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO parties (`+partyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, $14)`,
		string(p.ID), string(p.MerchantID), p.Name,
		nullString(p.Phone), nullString(p.Email), nullString(p.Address),
		nullString(p.GSTNumber), nullString(p.PANNumber),
		string(p.Type), p.OpeningBalance.Signed(), p.Balance.Signed(), p.Version,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err := duplicateParty(err); err != nil {
		return err
	}
	if pgCode(err) == codeUniqueViolation {
		return fmt.Errorf("%w: party %s already exists", ledger.ErrInvalidParty, p.ID)
	}
	return wrap("create party", err)
}

func getParty(ctx context.Context, q querier, id ledger.PartyID, forUpdate bool) (ledger.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE id = $1 AND is_active`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanParty(q.QueryRowContext(ctx, query, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	if err != nil {
		return ledger.Party{}, wrap("get party", err)
	}
	return p, nil
}

func listParties(ctx context.Context, q querier, merchantID ledger.MerchantID) ([]ledger.Party, error) {
	var b queryBuilder
	b.sql.WriteString(`SELECT ` + partyColumns + ` FROM parties WHERE is_active`)
	if merchantID != "" {
		b.add(` AND merchant_id = `, string(merchantID))
	}
	b.sql.WriteString(` ORDER BY name ASC, id ASC`)
	return queryParties(ctx, q, "list parties", b.sql.String(), b.args...)
}

func searchParties(ctx context.Context, q querier, merchantID ledger.MerchantID, term string) ([]ledger.Party, error) {
	pattern := "%" + escapeLike(term) + "%"
	var b queryBuilder
	b.add(`SELECT `+partyColumns+` FROM parties WHERE is_active AND (name ILIKE `, pattern)
	b.add(` OR phone ILIKE `, pattern)
	b.add(` OR email ILIKE `, pattern)
	b.sql.WriteString(`)`)
	if merchantID != "" {
		b.add(` AND merchant_id = `, string(merchantID))
	}
	b.sql.WriteString(` ORDER BY name ASC, id ASC`)
	return queryParties(ctx, q, "search parties", b.sql.String(), b.args...)
}

func queryParties(ctx context.Context, q querier, op, query string, args ...any) ([]ledger.Party, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	parties := []ledger.Party{}
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		parties = append(parties, p)
	}
	return parties, wrap(op, rows.Err())
}

func updateParty(ctx context.Context, q querier, p ledger.Party) error {
	res, err := q.ExecContext(ctx,
		`UPDATE parties SET name = $1, phone = $2, email = $3, address = $4,
		 gst_number = $5, pan_number = $6, party_type = $7, updated_at = $8
		 WHERE id = $9 AND is_active`,
		p.Name, nullString(p.Phone), nullString(p.Email), nullString(p.Address),
		nullString(p.GSTNumber), nullString(p.PANNumber), string(p.Type), p.UpdatedAt.UTC(),
		string(p.ID))
	if err := duplicateParty(err); err != nil {
		return err
	}
	return expectOneRow("update party", res, err)
}

func deactivateParty(ctx context.Context, q querier, id ledger.PartyID, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE parties SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND is_active`,
		at.UTC(), string(id))
	return expectOneRow("deactivate party", res, err)
}

// expectOneRow reports ErrPartyNotFound when an UPDATE matched nothing.
func expectOneRow(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return ledger.ErrPartyNotFound
	}
	return nil
}

// duplicateParty maps a violation of the uq_parties_merchant_* indexes to
// ErrDuplicateParty naming the clashing field.
func duplicateParty(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return nil
	}
	field, ok := strings.CutPrefix(pgErr.ConstraintName, "uq_parties_merchant_")
	if !ok {
		return nil
	}
	return fmt.Errorf("%w: %s is taken", ledger.ErrDuplicateParty, field)
}

func setBalance(ctx context.Context, q querier, id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	var version int64
	err := q.QueryRowContext(ctx,
		`UPDATE parties SET balance = $1, version = version + 1, updated_at = $2
		 WHERE id = $3 AND version = $4 AND is_active RETURNING version`,
		b.Signed(), at.UTC(), string(id), expectedVersion,
	).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, wrap("set balance", err)
	}

	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM parties WHERE id = $1 AND is_active)`, string(id),
	).Scan(&exists); err != nil {
		return 0, wrap("set balance", err)
	}
	if !exists {
		return 0, ledger.ErrPartyNotFound
	}
	return 0, ledger.ErrConcurrentModification
}

func scanParty(row scanner) (ledger.Party, error) {
	var (
		p                               ledger.Party
		id, merchantID, partyType       string
		phone, email, address, gst, pan sql.NullString
		opening, balance                decimal.Decimal
	)
	err := row.Scan(&id, &merchantID, &p.Name, &phone, &email, &address, &gst, &pan,
		&partyType, &opening, &balance, &p.Version, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.ID = ledger.PartyID(id)
	p.MerchantID = ledger.MerchantID(merchantID)
	p.Type = ledger.PartyType(partyType)
	p.Phone = phone.String
	p.Email = email.String
	p.Address = address.String
	p.GSTNumber = gst.String
	p.PANNumber = pan.String
	p.OpeningBalance = ledger.NewBalance(opening)
	p.Balance = ledger.NewBalance(balance)
	return p, nil
}

// =============================================================================
// ENTRY STORE - Append-only
// =============================================================================

const entryColumns = `seq, id, merchant_id, party_id, kind, amount, delta, balance_after, ` +
	`transaction_date, document_id, document_number, document_balance, description, ` +
	`reversal, reverses_id, idempotency_key, created_at`

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	return appendEntry(ctx, s.db, e)
}

func (s *Store) ListEntries(ctx context.Context, q ledger.EntryQuery) ([]ledger.Entry, error) {
	return listEntries(ctx, s.db, q)
}

func (s *Store) DocumentEntries(ctx context.Context, partyID ledger.PartyID, kind ledger.EventKind, documentID string) ([]ledger.Entry, error) {
	return documentEntries(ctx, s.db, partyID, kind, documentID)
}

func (s *Store) SumByKinds(ctx context.Context, partyID ledger.PartyID, kinds []ledger.EventKind) (decimal.Decimal, error) {
	return sumByKinds(ctx, s.db, partyID, kinds)
}

func (s *Store) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	return idempotencyKeyExists(ctx, s.db, key)
}

func appendEntry(ctx context.Context, q querier, e ledger.Entry) (ledger.Entry, error) {
	err := q.QueryRowContext(ctx, `INSERT INTO party_entries
		(id, merchant_id, party_id, kind, amount, delta, balance_after, transaction_date,
		 document_id, document_number, document_balance, description,
		 reversal, reverses_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING seq`,
		string(e.ID), string(e.MerchantID), string(e.PartyID), string(e.Kind),
		e.Amount, e.Delta, e.BalanceAfter.Signed(), e.TransactionDate.UTC(),
		nullString(e.Document.ID), nullString(e.Document.Number),
		nullDecimal(e.DocumentBalance), nullString(e.Description),
		e.Reversal, nullString(string(e.ReversesID)), nullString(e.IdempotencyKey),
		e.CreatedAt.UTC(),
	).Scan(&e.Sequence)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return e, nil
	case errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && strings.Contains(pgErr.ConstraintName, "idempotency"):
		return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
	case errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation:
		return ledger.Entry{}, ledger.ErrPartyNotFound
	default:
		return ledger.Entry{}, wrap("append entry", err)
	}
}

func listEntries(ctx context.Context, q querier, eq ledger.EntryQuery) ([]ledger.Entry, error) {
	var b queryBuilder
	b.add(`SELECT `+entryColumns+` FROM party_entries WHERE party_id = `, string(eq.PartyID))
	if eq.From != nil {
		b.add(` AND transaction_date >= `, eq.From.UTC())
	}
	if eq.To != nil {
		b.add(` AND transaction_date <= `, eq.To.UTC())
	}
	if len(eq.Kinds) > 0 {
		b.in(` AND kind IN `, kindArgs(eq.Kinds))
	}
	b.sql.WriteString(` ORDER BY seq DESC`)
	if eq.Limit > 0 {
		b.add(` LIMIT `, eq.Limit)
	}
	return queryEntries(ctx, q, "list entries", b.sql.String(), b.args...)
}

func documentEntries(ctx context.Context, q querier, partyID ledger.PartyID, kind ledger.EventKind, documentID string) ([]ledger.Entry, error) {
	return queryEntries(ctx, q, "document entries",
		`SELECT `+entryColumns+` FROM party_entries
		 WHERE party_id = $1 AND kind = $2 AND document_id = $3
		 ORDER BY seq ASC`,
		string(partyID), string(kind), documentID)
}

func sumByKinds(ctx context.Context, q querier, partyID ledger.PartyID, kinds []ledger.EventKind) (decimal.Decimal, error) {
	if len(kinds) == 0 {
		return decimal.Zero, nil
	}
	var b queryBuilder
	b.add(`SELECT COALESCE(SUM(CASE WHEN reversal THEN -amount ELSE amount END), 0)
		FROM party_entries WHERE party_id = `, string(partyID))
	b.in(` AND kind IN `, kindArgs(kinds))

	var total decimal.Decimal
	if err := q.QueryRowContext(ctx, b.sql.String(), b.args...).Scan(&total); err != nil {
		return decimal.Zero, wrap("sum entries", err)
	}
	return total, nil
}

func idempotencyKeyExists(ctx context.Context, q querier, key string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM party_entries WHERE idempotency_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, wrap("idempotency lookup", err)
	}
	return exists, nil
}

func queryEntries(ctx context.Context, q querier, op, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		entries = append(entries, e)
	}
	return entries, wrap(op, rows.Err())
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e                             ledger.Entry
		id, merchantID, partyID, kind string
		balanceAfter                  decimal.Decimal
		docID, docNumber, desc, revID sql.NullString
		idemKey                       sql.NullString
		docBalance                    decimal.NullDecimal
	)
	err := row.Scan(&e.Sequence, &id, &merchantID, &partyID, &kind,
		&e.Amount, &e.Delta, &balanceAfter, &e.TransactionDate,
		&docID, &docNumber, &docBalance, &desc,
		&e.Reversal, &revID, &idemKey, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.ID = ledger.EntryID(id)
	e.MerchantID = ledger.MerchantID(merchantID)
	e.PartyID = ledger.PartyID(partyID)
	e.Kind = ledger.EventKind(kind)
	e.BalanceAfter = ledger.NewBalance(balanceAfter)
	e.Document = ledger.DocumentRef{ID: docID.String, Number: docNumber.String}
	if docBalance.Valid {
		d := docBalance.Decimal
		e.DocumentBalance = &d
	}
	e.Description = desc.String
	e.ReversesID = ledger.EntryID(revID.String)
	e.IdempotencyKey = idemKey.String
	return e, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Serialization failures
// and deadlocks are reported as ErrConcurrentModification.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return wrap("commit", sqlTx.Commit())
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateParty(ctx context.Context, p ledger.Party) error {
	return createParty(ctx, ts.tx, p)
}

// GetParty locks the row until the transaction ends.
func (ts *txStore) GetParty(ctx context.Context, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, ts.tx, id, true)
}

func (ts *txStore) ListParties(ctx context.Context, merchantID ledger.MerchantID) ([]ledger.Party, error) {
	return listParties(ctx, ts.tx, merchantID)
}

func (ts *txStore) SearchParties(ctx context.Context, merchantID ledger.MerchantID, term string) ([]ledger.Party, error) {
	return searchParties(ctx, ts.tx, merchantID, term)
}

func (ts *txStore) UpdateParty(ctx context.Context, p ledger.Party) error {
	return updateParty(ctx, ts.tx, p)
}

func (ts *txStore) DeactivateParty(ctx context.Context, id ledger.PartyID, at time.Time) error {
	return deactivateParty(ctx, ts.tx, id, at)
}

func (ts *txStore) SetBalance(ctx context.Context, id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	return setBalance(ctx, ts.tx, id, expectedVersion, b, at)
}

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) ListEntries(ctx context.Context, q ledger.EntryQuery) ([]ledger.Entry, error) {
	return listEntries(ctx, ts.tx, q)
}

func (ts *txStore) DocumentEntries(ctx context.Context, partyID ledger.PartyID, kind ledger.EventKind, documentID string) ([]ledger.Entry, error) {
	return documentEntries(ctx, ts.tx, partyID, kind, documentID)
}

func (ts *txStore) SumByKinds(ctx context.Context, partyID ledger.PartyID, kinds []ledger.EventKind) (decimal.Decimal, error) {
	return sumByKinds(ctx, ts.tx, partyID, kinds)
}

func (ts *txStore) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	return idempotencyKeyExists(ctx, ts.tx, key)
}

// =============================================================================
// UTILITIES
// =============================================================================

// queryBuilder numbers $n placeholders as arguments are added.
type queryBuilder struct {
	sql  strings.Builder
	args []any
}

func (b *queryBuilder) add(fragment string, arg any) {
	b.args = append(b.args, arg)
	b.sql.WriteString(fragment)
	b.sql.WriteString("$" + strconv.Itoa(len(b.args)))
}

func (b *queryBuilder) in(fragment string, args []any) {
	b.sql.WriteString(fragment)
	b.sql.WriteString("(")
	for i, a := range args {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		b.args = append(b.args, a)
		b.sql.WriteString("$" + strconv.Itoa(len(b.args)))
	}
	b.sql.WriteString(")")
}

// escapeLike escapes ILIKE wildcards so a search term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func kindArgs(kinds []ledger.EventKind) []any {
	out := make([]any, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrap maps serialization failures and deadlocks to
// ErrConcurrentModification, amounts beyond NUMERIC(19,2) to
// ErrInvalidAmount and everything else to a PersistenceError.
func wrap(op string, err error) error {
	switch pgCode(err) {
	case codeSerializationFailed, codeDeadlockDetected:
		return fmt.Errorf("%s: %w", op, ledger.ErrConcurrentModification)
	case codeNumericOutOfRange:
		return fmt.Errorf("%s: %w: %w", op, ledger.ErrInvalidAmount, err)
	}
	return ledger.Persistence(op, err)
}
