/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists parties and their ledger entries in SQLite. The PostgreSQL store
  in store/postgres follows the same layout with dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on party_entries
  - No DELETE statements on party_entries
  - Corrections via compensating entries only

KEY TABLES:
  parties:       identity + signed balance + version + is_active
  party_entries: immutable ledger, seq is the application order

INDEXES:
  - uq_parties_merchant_{name,phone,email}: identity, active parties only
  - idx_party_entries_party_seq: history, most recent first (hot path)
  - idx_party_entries_document:  document state lookups
  - idx_party_entries_date:      date-range history

NUMERIC STORAGE:
  Decimals are stored as TEXT and summed in Go. SQLite would turn SUM over
  TEXT into a float.

TIMES:
  Stored as TEXT in a fixed-width UTC layout so lexical order is time order.

CONCURRENCY:
  One connection. SQLite allows one writer at a time, and a single
  connection keeps ":memory:" databases shared between callers.
  Transactions begin IMMEDIATE, which takes the write lock up front.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/party-ledger/ledger"
)

// timeLayout is fixed width so TEXT comparison orders by time.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
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
		opening_balance TEXT NOT NULL,
		balance TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parties_merchant
		ON parties(merchant_id, name);

	-- Identity is unique among a merchant's active parties
	CREATE UNIQUE INDEX IF NOT EXISTS uq_parties_merchant_name
		ON parties(merchant_id, name) WHERE is_active = 1;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_parties_merchant_phone
		ON parties(merchant_id, phone) WHERE is_active = 1 AND phone IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_parties_merchant_email
		ON parties(merchant_id, email) WHERE is_active = 1 AND email IS NOT NULL;

	-- Append-only ledger
	CREATE TABLE IF NOT EXISTS party_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		merchant_id TEXT NOT NULL,
		party_id TEXT NOT NULL REFERENCES parties(id),
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		delta TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		document_id TEXT,
		document_number TEXT,
		document_balance TEXT,
		description TEXT,
		reversal INTEGER NOT NULL DEFAULT 0,
		reverses_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_party_entries_party_seq
		ON party_entries(party_id, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_party_entries_document
		ON party_entries(party_id, kind, document_id) WHERE document_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_party_entries_date
		ON party_entries(party_id, transaction_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PARTY STORE
// =============================================================================

const partyColumns = `id, merchant_id, name, phone, email, address, gst_number, pan_number,
	party_type, opening_balance, balance, version, is_active, created_at, updated_at`

func (s *Store) CreateParty(ctx context.Context, p ledger.Party) error {
	return createParty(ctx, s.db, p)
}

func (s *Store) GetParty(ctx context.Context, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, s.db, id)
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
	_, err := q.ExecContext(ctx, `INSERT INTO parties (`+partyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.ID, p.MerchantID, p.Name,
		nullString(p.Phone), nullString(p.Email), nullString(p.Address),
		nullString(p.GSTNumber), nullString(p.PANNumber),
		p.Type, p.OpeningBalance.Signed(), p.Balance.Signed(), p.Version,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: party %s already exists", ledger.ErrInvalidParty, p.ID)
	}
	if err := duplicateParty(err); err != nil {
		return err
	}
	return ledger.Persistence("create party", err)
}

func getParty(ctx context.Context, q querier, id ledger.PartyID) (ledger.Party, error) {
	row := q.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = ? AND is_active = 1`, id)
	p, err := scanParty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	if err != nil {
		return ledger.Party{}, ledger.Persistence("get party", err)
	}
	return p, nil
}

func listParties(ctx context.Context, q querier, merchantID ledger.MerchantID) ([]ledger.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE is_active = 1`
	var args []any
	if merchantID != "" {
		query += ` AND merchant_id = ?`
		args = append(args, merchantID)
	}
	query += ` ORDER BY name ASC, id ASC`
	return queryParties(ctx, q, "list parties", query, args...)
}

func searchParties(ctx context.Context, q querier, merchantID ledger.MerchantID, term string) ([]ledger.Party, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	query := `SELECT ` + partyColumns + ` FROM parties WHERE is_active = 1
		AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(phone) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern, pattern}
	if merchantID != "" {
		query += ` AND merchant_id = ?`
		args = append(args, merchantID)
	}
	query += ` ORDER BY name ASC, id ASC`
	return queryParties(ctx, q, "search parties", query, args...)
}

func queryParties(ctx context.Context, q querier, op, query string, args ...any) ([]ledger.Party, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.Persistence(op, err)
	}
	defer rows.Close()

	parties := []ledger.Party{}
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, ledger.Persistence(op, err)
		}
		parties = append(parties, p)
	}
	return parties, ledger.Persistence(op, rows.Err())
}

func updateParty(ctx context.Context, q querier, p ledger.Party) error {
	res, err := q.ExecContext(ctx,
		`UPDATE parties SET name = ?, phone = ?, email = ?, address = ?,
		 gst_number = ?, pan_number = ?, party_type = ?, updated_at = ?
		 WHERE id = ? AND is_active = 1`,
		p.Name, nullString(p.Phone), nullString(p.Email), nullString(p.Address),
		nullString(p.GSTNumber), nullString(p.PANNumber), p.Type, formatTime(p.UpdatedAt),
		p.ID)
	if err := duplicateParty(err); err != nil {
		return err
	}
	return expectOneRow("update party", res, err)
}

func deactivateParty(ctx context.Context, q querier, id ledger.PartyID, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE parties SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		formatTime(at), id)
	return expectOneRow("deactivate party", res, err)
}

// expectOneRow reports ErrPartyNotFound when an UPDATE matched nothing.
func expectOneRow(op string, res sql.Result, err error) error {
	if err != nil {
		return ledger.Persistence(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Persistence(op, err)
	}
	if n == 0 {
		return ledger.ErrPartyNotFound
	}
	return nil
}

// duplicateParty maps a unique index violation on parties to
// ErrDuplicateParty naming the clashing field.
func duplicateParty(err error) error {
	if !isConstraint(err, sqlite3.ErrConstraintUnique) {
		return nil
	}
	for _, field := range []string{"name", "phone", "email"} {
		if strings.Contains(err.Error(), "parties."+field) {
			return fmt.Errorf("%w: %s is taken", ledger.ErrDuplicateParty, field)
		}
	}
	return nil
}

func setBalance(ctx context.Context, q querier, id ledger.PartyID, expectedVersion int64, b ledger.Balance, at time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE parties SET balance = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND is_active = 1`,
		b.Signed(), formatTime(at), id, expectedVersion)
	if err != nil {
		return 0, ledger.Persistence("set balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ledger.Persistence("set balance", err)
	}
	if n == 0 {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM parties WHERE id = ? AND is_active = 1`, id).Scan(&exists)
		if err != nil {
			return 0, ledger.Persistence("set balance", err)
		}
		if exists == 0 {
			return 0, ledger.ErrPartyNotFound
		}
		return 0, ledger.ErrConcurrentModification
	}
	return expectedVersion + 1, nil
}

func scanParty(row scanner) (ledger.Party, error) {
	var (
		p                               ledger.Party
		phone, email, address, gst, pan sql.NullString
		opening, balance                decimal.Decimal
		createdAt, updatedAt            string
	)
	err := row.Scan(&p.ID, &p.MerchantID, &p.Name, &phone, &email, &address, &gst, &pan,
		&p.Type, &opening, &balance, &p.Version, &p.Active, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}
	p.Phone = phone.String
	p.Email = email.String
	p.Address = address.String
	p.GSTNumber = gst.String
	p.PANNumber = pan.String
	p.OpeningBalance = ledger.NewBalance(opening)
	p.Balance = ledger.NewBalance(balance)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// ENTRY STORE - Append-only
// =============================================================================

const entryColumns = `seq, id, merchant_id, party_id, kind, amount, delta, balance_after,
	transaction_date, document_id, document_number, document_balance, description,
	reversal, reverses_id, idempotency_key, created_at`

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
	res, err := q.ExecContext(ctx, `INSERT INTO party_entries
		(id, merchant_id, party_id, kind, amount, delta, balance_after, transaction_date,
		 document_id, document_number, document_balance, description,
		 reversal, reverses_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MerchantID, e.PartyID, e.Kind,
		e.Amount, e.Delta, e.BalanceAfter.Signed(),
		formatTime(e.TransactionDate),
		nullString(e.Document.ID), nullString(e.Document.Number),
		nullDecimal(e.DocumentBalance), nullString(e.Description),
		e.Reversal, nullString(string(e.ReversesID)), nullString(e.IdempotencyKey),
		formatTime(e.CreatedAt),
	)
	switch {
	case isConstraint(err, sqlite3.ErrConstraintUnique) && strings.Contains(err.Error(), "idempotency_key"):
		return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
	case isConstraint(err, sqlite3.ErrConstraintForeignKey):
		return ledger.Entry{}, ledger.ErrPartyNotFound
	case err != nil:
		return ledger.Entry{}, ledger.Persistence("append entry", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return ledger.Entry{}, ledger.Persistence("append entry", err)
	}
	e.Sequence = seq
	return e, nil
}

func listEntries(ctx context.Context, q querier, eq ledger.EntryQuery) ([]ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM party_entries WHERE party_id = ?`
	args := []any{eq.PartyID}
	if eq.From != nil {
		query += ` AND transaction_date >= ?`
		args = append(args, formatTime(*eq.From))
	}
	if eq.To != nil {
		query += ` AND transaction_date <= ?`
		args = append(args, formatTime(*eq.To))
	}
	if len(eq.Kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(eq.Kinds)) + `)`
		for _, k := range eq.Kinds {
			args = append(args, k)
		}
	}
	query += ` ORDER BY seq DESC`
	if eq.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, eq.Limit)
	}
	return queryEntries(ctx, q, "list entries", query, args...)
}

func documentEntries(ctx context.Context, q querier, partyID ledger.PartyID, kind ledger.EventKind, documentID string) ([]ledger.Entry, error) {
	return queryEntries(ctx, q, "document entries",
		`SELECT `+entryColumns+` FROM party_entries
		 WHERE party_id = ? AND kind = ? AND document_id = ?
		 ORDER BY seq ASC`,
		partyID, kind, documentID)
}

func sumByKinds(ctx context.Context, q querier, partyID ledger.PartyID, kinds []ledger.EventKind) (decimal.Decimal, error) {
	if len(kinds) == 0 {
		return decimal.Zero, nil
	}
	args := []any{partyID}
	for _, k := range kinds {
		args = append(args, k)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT amount, reversal FROM party_entries
		 WHERE party_id = ? AND kind IN (`+placeholders(len(kinds))+`)`, args...)
	if err != nil {
		return decimal.Zero, ledger.Persistence("sum entries", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var (
			amount   decimal.Decimal
			reversal bool
		)
		if err := rows.Scan(&amount, &reversal); err != nil {
			return decimal.Zero, ledger.Persistence("sum entries", err)
		}
		if reversal {
			total = total.Sub(amount)
		} else {
			total = total.Add(amount)
		}
	}
	return total, ledger.Persistence("sum entries", rows.Err())
}

func idempotencyKeyExists(ctx context.Context, q querier, key string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM party_entries WHERE idempotency_key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, ledger.Persistence("idempotency lookup", err)
	}
	return count > 0, nil
}

func queryEntries(ctx context.Context, q querier, op, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.Persistence(op, err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, ledger.Persistence(op, err)
		}
		entries = append(entries, e)
	}
	return entries, ledger.Persistence(op, rows.Err())
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e                             ledger.Entry
		balanceAfter                  decimal.Decimal
		docID, docNumber, desc, revID sql.NullString
		idemKey                       sql.NullString
		docBalance                    decimal.NullDecimal
		txDate, createdAt             string
	)
	err := row.Scan(&e.Sequence, &e.ID, &e.MerchantID, &e.PartyID, &e.Kind,
		&e.Amount, &e.Delta, &balanceAfter, &txDate,
		&docID, &docNumber, &docBalance, &desc,
		&e.Reversal, &revID, &idemKey, &createdAt)
	if err != nil {
		return e, err
	}
	e.BalanceAfter = ledger.NewBalance(balanceAfter)
	e.TransactionDate = parseTime(txDate)
	e.Document = ledger.DocumentRef{ID: docID.String, Number: docNumber.String}
	if docBalance.Valid {
		d := docBalance.Decimal
		e.DocumentBalance = &d
	}
	e.Description = desc.String
	e.ReversesID = ledger.EntryID(revID.String)
	e.IdempotencyKey = idemKey.String
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Persistence("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return ledger.Persistence("commit", sqlTx.Commit())
}

// txStore runs every operation on the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateParty(ctx context.Context, p ledger.Party) error {
	return createParty(ctx, ts.tx, p)
}

func (ts *txStore) GetParty(ctx context.Context, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, ts.tx, id)
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

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// escapeLike escapes LIKE wildcards so a search term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}
