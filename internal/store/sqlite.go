package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/models"
	"trading-agent/pkg/utils"
)

// SQLiteStore implements LedgerStore and JournalStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ LedgerStore  = (*SQLiteStore)(nil)
	_ JournalStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Single ledger row
	CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		cash REAL NOT NULL CHECK (cash >= 0),
		starting_capital REAL NOT NULL,
		trading_date TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Positions, never deleted
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		entry_time DATETIME NOT NULL,
		status TEXT NOT NULL,
		exit_price REAL,
		exit_time DATETIME,
		realized_pnl REAL
	);

	-- Append-only trade log
	CREATE TABLE IF NOT EXISTS trades (
		trade_id TEXT PRIMARY KEY,
		trade_date TEXT NOT NULL,
		seq INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		technical_score REAL,
		sentiment_label TEXT,
		confidence TEXT,
		reasoning TEXT,
		position_pct REAL,
		risk_amount REAL,
		position_id INTEGER NOT NULL,
		order_id TEXT,
		stop_loss REAL,
		capital_at_trade REAL,
		exit_reason TEXT,
		UNIQUE(trade_date, seq),
		FOREIGN KEY (position_id) REFERENCES positions(id)
	);

	-- Daily P&L, created lazily and never deleted
	CREATE TABLE IF NOT EXISTS daily_pnl (
		date TEXT PRIMARY KEY,
		realized_pnl REAL NOT NULL DEFAULT 0,
		unrealized_pnl REAL NOT NULL DEFAULT 0,
		trade_count INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		circuit_breaker_hit INTEGER NOT NULL DEFAULT 0,
		capital_at_day_start REAL NOT NULL DEFAULT 0
	);

	-- Decision audit trail
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		technical_ok INTEGER NOT NULL,
		sentiment_ok INTEGER NOT NULL,
		no_red_flags INTEGER NOT NULL,
		capacity_ok INTEGER NOT NULL,
		decision TEXT NOT NULL,
		confidence TEXT,
		reasoning TEXT,
		technical_score REAL,
		sentiment_label TEXT,
		red_flags TEXT,
		outcome TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Upstream analysis cache, read with a soft TTL
	CREATE TABLE IF NOT EXISTS analysis_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		score REAL,
		label TEXT,
		details TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_symbol ON positions(symbol) WHERE status = 'OPEN';
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date);
	CREATE INDEX IF NOT EXISTS idx_decisions_cycle ON decisions(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
	CREATE INDEX IF NOT EXISTS idx_analysis_symbol_kind ON analysis_cache(symbol, kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ============================================================================
// Ledger Methods
// ============================================================================

// InitLedger inserts the ledger row and the first day's P&L entry.
func (s *SQLiteStore) InitLedger(ctx context.Context, state LedgerState, day models.DailyPnL) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger (id, cash, starting_capital, trading_date, created_at)
			VALUES (1, ?, ?, ?, ?)
		`, state.Cash, state.StartingCapital, state.CurrentDate, state.CreatedAt.UTC())
		if err != nil {
			if isConstraintViolation(err) {
				return apperrors.ErrAlreadyInitialized
			}
			return fmt.Errorf("failed to insert ledger: %w", err)
		}
		return upsertDay(ctx, tx, day)
	})
}

// LoadLedger returns the ledger row or ErrNotInitialized.
func (s *SQLiteStore) LoadLedger(ctx context.Context) (*LedgerState, error) {
	var st LedgerState
	err := s.db.QueryRowContext(ctx, `
		SELECT cash, starting_capital, trading_date, created_at FROM ledger WHERE id = 1
	`).Scan(&st.Cash, &st.StartingCapital, &st.CurrentDate, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return &st, nil
}

// InsertPosition stores an OPEN position, the debited cash and the day's entry.
func (s *SQLiteStore) InsertPosition(ctx context.Context, pos models.Position, cash float64, day models.DailyPnL) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO positions (symbol, quantity, entry_price, stop_loss, entry_time, status)
			VALUES (?, ?, ?, ?, ?, ?)
		`, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.StopLoss, pos.EntryTime.UTC(), models.PositionOpen)
		if err != nil {
			if isConstraintViolation(err) {
				return apperrors.ErrDuplicatePosition
			}
			return fmt.Errorf("failed to insert position: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read position id: %w", err)
		}
		if err := updateCash(ctx, tx, cash); err != nil {
			return err
		}
		return upsertDay(ctx, tx, day)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SettleClose marks the position CLOSED, stores the credited cash and the day's entry.
func (s *SQLiteStore) SettleClose(ctx context.Context, pos models.Position, cash float64, day models.DailyPnL) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE positions SET status = ?, exit_price = ?, exit_time = ?, realized_pnl = ?
			WHERE id = ? AND status = ?
		`, models.PositionClosed, pos.ExitPrice, pos.ExitTime.UTC(), pos.RealizedPnL, pos.ID, models.PositionOpen)
		if err != nil {
			return fmt.Errorf("failed to close position: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.ErrAlreadyClosed
		}
		if err := updateCash(ctx, tx, cash); err != nil {
			return err
		}
		return upsertDay(ctx, tx, day)
	})
}

// SaveDay stores currentDate on the ledger row and upserts the day's entry.
func (s *SQLiteStore) SaveDay(ctx context.Context, currentDate string, day models.DailyPnL) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE ledger SET trading_date = ? WHERE id = 1`, currentDate); err != nil {
			return fmt.Errorf("failed to update ledger date: %w", err)
		}
		return upsertDay(ctx, tx, day)
	})
}

func updateCash(ctx context.Context, tx *sql.Tx, cash float64) error {
	res, err := tx.ExecContext(ctx, `UPDATE ledger SET cash = ? WHERE id = 1`, cash)
	if err != nil {
		return fmt.Errorf("failed to update cash: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return apperrors.ErrNotInitialized
	}
	return nil
}

func upsertDay(ctx context.Context, tx *sql.Tx, day models.DailyPnL) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_pnl (date, realized_pnl, unrealized_pnl, trade_count, wins, losses, circuit_breaker_hit, capital_at_day_start)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			realized_pnl = excluded.realized_pnl,
			unrealized_pnl = excluded.unrealized_pnl,
			trade_count = excluded.trade_count,
			wins = excluded.wins,
			losses = excluded.losses,
			circuit_breaker_hit = excluded.circuit_breaker_hit,
			capital_at_day_start = excluded.capital_at_day_start
	`, day.Date, day.RealizedPnL, day.UnrealizedPnL, day.TradeCount, day.Wins, day.Losses, boolToInt(day.CircuitBreakerHit), day.CapitalAtDayStart)
	if err != nil {
		return fmt.Errorf("failed to save daily pnl: %w", err)
	}
	return nil
}

// ============================================================================
// Positions Methods
// ============================================================================

const positionColumns = "id, symbol, quantity, entry_price, stop_loss, entry_time, status, exit_price, exit_time, realized_pnl"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (models.Position, error) {
	var p models.Position
	var exitPrice, realized sql.NullFloat64
	var exitTime sql.NullTime
	if err := row.Scan(&p.ID, &p.Symbol, &p.Quantity, &p.EntryPrice, &p.StopLoss, &p.EntryTime, &p.Status, &exitPrice, &exitTime, &realized); err != nil {
		return p, err
	}
	p.ExitPrice = exitPrice.Float64
	p.RealizedPnL = realized.Float64
	if exitTime.Valid {
		t := exitTime.Time
		p.ExitTime = &t
	}
	return p, nil
}

// GetPosition returns a position by ID or ErrUnknownPosition.
func (s *SQLiteStore) GetPosition(ctx context.Context, id int64) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+positionColumns+" FROM positions WHERE id = ?", id)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUnknownPosition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &p, nil
}

// OpenPositions returns all OPEN positions ordered by symbol.
func (s *SQLiteStore) OpenPositions(ctx context.Context) ([]models.Position, error) {
	return s.Positions(ctx, PositionFilter{Status: models.PositionOpen})
}

// Positions retrieves positions from the database.
func (s *SQLiteStore) Positions(ctx context.Context, filter PositionFilter) ([]models.Position, error) {
	query := "SELECT " + positionColumns + " FROM positions WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY symbol ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// ============================================================================
// Daily P&L Methods
// ============================================================================

const dailyColumns = "date, realized_pnl, unrealized_pnl, trade_count, wins, losses, circuit_breaker_hit, capital_at_day_start"

func scanDaily(row rowScanner) (models.DailyPnL, error) {
	var d models.DailyPnL
	var hit int
	err := row.Scan(&d.Date, &d.RealizedPnL, &d.UnrealizedPnL, &d.TradeCount, &d.Wins, &d.Losses, &hit, &d.CapitalAtDayStart)
	d.CircuitBreakerHit = hit == 1
	return d, err
}

// GetDailyPnL returns the entry for date, or nil when the date was never touched.
func (s *SQLiteStore) GetDailyPnL(ctx context.Context, date string) (*models.DailyPnL, error) {
	d, err := scanDaily(s.db.QueryRowContext(ctx, "SELECT "+dailyColumns+" FROM daily_pnl WHERE date = ?", date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily pnl: %w", err)
	}
	return &d, nil
}

// ListDailyPnL returns the most recent entries first.
func (s *SQLiteStore) ListDailyPnL(ctx context.Context, limit int) ([]models.DailyPnL, error) {
	query := "SELECT " + dailyColumns + " FROM daily_pnl ORDER BY date DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily pnl: %w", err)
	}
	defer rows.Close()

	var days []models.DailyPnL
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily pnl: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// ============================================================================
// Trades Methods
// ============================================================================

// AppendTrade assigns the next per-day trade ID and inserts the record.
func (s *SQLiteStore) AppendTrade(ctx context.Context, rec *models.TradeRecord) error {
	if rec.TradeID != "" {
		return fmt.Errorf("trade record already has id %s", rec.TradeID)
	}
	date := utils.DateKey(rec.Timestamp)
	compact := strings.ReplaceAll(date, "-", "")

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var seq int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(seq), 0) + 1 FROM trades WHERE trade_date = ?
		`, date).Scan(&seq); err != nil {
			return fmt.Errorf("failed to read trade sequence: %w", err)
		}
		tradeID := fmt.Sprintf("T%s-%04d", compact, seq)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO trades (trade_id, trade_date, seq, symbol, side, quantity, price, timestamp, technical_score, sentiment_label, confidence, reasoning, position_pct, risk_amount, position_id, order_id, stop_loss, capital_at_trade, exit_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, tradeID, date, seq, rec.Symbol, rec.Side, rec.Quantity, rec.Price, rec.Timestamp.UTC(), rec.TechnicalScore, rec.SentimentLabel, rec.Confidence, rec.Reasoning, rec.Risk.PositionPct, rec.Risk.RiskAmount, rec.PositionID, rec.OrderID, rec.StopLoss, rec.CapitalAtTrade, rec.ExitReason)
		if err != nil {
			return fmt.Errorf("failed to log trade: %w", err)
		}

		rec.TradeID = tradeID
		return nil
	})
}

// Trades retrieves trade records, oldest first.
func (s *SQLiteStore) Trades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error) {
	query := "SELECT trade_id, symbol, side, quantity, price, timestamp, technical_score, sentiment_label, confidence, reasoning, position_pct, risk_amount, position_id, order_id, stop_loss, capital_at_trade, exit_reason FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Date != "" {
		query += " AND trade_date = ?"
		args = append(args, filter.Date)
	}
	if filter.Side != "" {
		query += " AND side = ?"
		args = append(args, filter.Side)
	}

	query += " ORDER BY trade_date ASC, seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		if err := rows.Scan(&t.TradeID, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &t.Timestamp, &t.TechnicalScore, &t.SentimentLabel, &t.Confidence, &t.Reasoning, &t.Risk.PositionPct, &t.Risk.RiskAmount, &t.PositionID, &t.OrderID, &t.StopLoss, &t.CapitalAtTrade, &t.ExitReason); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// ============================================================================
// Decisions Methods
// ============================================================================

// AppendDecision inserts a decision record and sets its ID.
func (s *SQLiteStore) AppendDecision(ctx context.Context, rec *models.DecisionRecord) error {
	flags, err := json.Marshal(rec.RedFlags)
	if err != nil {
		return fmt.Errorf("failed to encode red flags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (cycle_id, symbol, technical_ok, sentiment_ok, no_red_flags, capacity_ok, decision, confidence, reasoning, technical_score, sentiment_label, red_flags, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.CycleID, rec.Symbol,
		boolToInt(rec.Criteria.TechnicalOK), boolToInt(rec.Criteria.SentimentOK),
		boolToInt(rec.Criteria.NoRedFlags), boolToInt(rec.Criteria.CapacityOK),
		rec.Decision, rec.Confidence, rec.Reasoning, rec.TechnicalScore, rec.SentimentLabel,
		string(flags), rec.Outcome, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read decision id: %w", err)
	}
	return nil
}

// Decisions retrieves decision records in insertion order.
func (s *SQLiteStore) Decisions(ctx context.Context, filter DecisionFilter) ([]models.DecisionRecord, error) {
	query := "SELECT id, cycle_id, symbol, technical_ok, sentiment_ok, no_red_flags, capacity_ok, decision, confidence, reasoning, technical_score, sentiment_label, red_flags, outcome, created_at FROM decisions WHERE 1=1"
	args := []interface{}{}

	if filter.CycleID != "" {
		query += " AND cycle_id = ?"
		args = append(args, filter.CycleID)
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}

	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []models.DecisionRecord
	for rows.Next() {
		var r models.DecisionRecord
		var c1, c2, c3, c4 int
		var flags string
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Symbol, &c1, &c2, &c3, &c4, &r.Decision, &r.Confidence, &r.Reasoning, &r.TechnicalScore, &r.SentimentLabel, &flags, &r.Outcome, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		r.Criteria = models.Criteria{TechnicalOK: c1 == 1, SentimentOK: c2 == 1, NoRedFlags: c3 == 1, CapacityOK: c4 == 1}
		if err := json.Unmarshal([]byte(flags), &r.RedFlags); err != nil {
			return nil, fmt.Errorf("failed to decode red flags: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// ============================================================================
// Analysis Cache Methods
// ============================================================================

// SaveAnalysis appends an analysis entry. Older entries are kept.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, entry *models.AnalysisEntry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (symbol, kind, score, label, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Symbol, entry.Kind, entry.Score, entry.Label, entry.Details, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	return err
}

// LatestAnalysis returns the most recently saved entry for symbol and kind, or nil.
func (s *SQLiteStore) LatestAnalysis(ctx context.Context, symbol string, kind models.AnalysisKind) (*models.AnalysisEntry, error) {
	var e models.AnalysisEntry
	var label, details sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, kind, score, label, details, created_at
		FROM analysis_cache
		WHERE symbol = ? AND kind = ?
		ORDER BY id DESC LIMIT 1
	`, symbol, kind).Scan(&e.ID, &e.Symbol, &e.Kind, &e.Score, &label, &details, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	e.Label = label.String
	e.Details = details.String
	return &e, nil
}
