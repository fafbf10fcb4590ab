package store

import (
	"context"
	"strings"
	"time"

	"casino-relay/internal/metrics"
	"casino-relay/internal/results"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

const resultColumns = `id, game_id, table_id, result, result_type, winner, multiplier, card_value, color,
	slots, payout, extracted_at, expires_at, retention_period, priority, round_id, dealer_name,
	total_players, metadata`

// SaveResult inserts rec. It reports false when the row already existed.
func (s *Store) SaveResult(ctx context.Context, rec results.GameResult) (bool, error) {
	if rec.ID == "" {
		rec.ID = NewIDAt(rec.ExtractedAt)
	}
	meta, err := metadataParam(rec.Metadata)
	if err != nil {
		return false, &PersistenceError{Op: "save", TableID: rec.TableID, Err: err}
	}
	tag, err := s.Pool.Exec(ctx, `INSERT INTO game_results (`+resultColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.GameID, rec.TableID, rec.Result, string(rec.ResultType),
		textParam(rec.Winner), float8PtrParam(rec.Multiplier), textParam(rec.CardValue), textParam(rec.Color),
		jsonbParam(rec.Slots), float8PtrParam(rec.Payout), rec.ExtractedAt, rec.ExpiresAt,
		string(rec.RetentionPeriod), string(rec.Priority), textParam(rec.RoundID), textParam(rec.DealerName),
		int4PtrParam(rec.TotalPlayers), meta,
	)
	if err != nil {
		return false, &PersistenceError{Op: "save", TableID: rec.TableID, Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

// SaveResultSafe is SaveResult for the ingest path: failures are logged and
// counted, never returned.
func (s *Store) SaveResultSafe(ctx context.Context, rec results.GameResult) {
	if _, err := s.SaveResult(ctx, rec); err != nil {
		metrics.PersistErrorsTotal.Inc()
		log.Error().Err(err).Str("game_id", rec.GameID).Str("table_id", rec.TableID).Msg("result_persist_failed")
	}
}

func (s *Store) QueryRecent(ctx context.Context, q results.RecentQuery) ([]results.GameResult, error) {
	q = q.Normalize()
	where := []string{"expires_at > now()"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+itoa(len(args)), 1))
	}
	if q.GameID != "" {
		add("game_id = ?", q.GameID)
	}
	if q.TableID != "" {
		add("table_id = ?", q.TableID)
	}
	if !q.Since.IsZero() {
		add("extracted_at >= ?", q.Since)
	}
	args = append(args, q.Limit)
	sql := `SELECT ` + resultColumns + ` FROM game_results WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY extracted_at DESC, id DESC LIMIT $` + itoa(len(args))

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "query_recent", TableID: q.TableID, Err: err}
	}
	defer rows.Close()
	out := []results.GameResult{}
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "query_recent", TableID: q.TableID, Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "query_recent", TableID: q.TableID, Err: err}
	}
	return out, nil
}

// CleanupExpired deletes rows whose expiry is at or before now.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM game_results WHERE expires_at <= now()`)
	if err != nil {
		return 0, &PersistenceError{Op: "cleanup", Err: err}
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetResult(ctx context.Context, id string) (results.GameResult, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM game_results WHERE id = $1`, id)
	rec, err := scanResult(row)
	if err != nil {
		return results.GameResult{}, mapNotFound(err)
	}
	return rec, nil
}

func scanResult(row pgx.Row) (results.GameResult, error) {
	var (
		rec          results.GameResult
		resultType   string
		retention    string
		priority     string
		winner       pgtype.Text
		cardValue    pgtype.Text
		color        pgtype.Text
		roundID      pgtype.Text
		dealer       pgtype.Text
		multiplier   pgtype.Float8
		payout       pgtype.Float8
		totalPlayers pgtype.Int4
		slots        []byte
		metadata     []byte
		extractedAt  time.Time
		expiresAt    time.Time
	)
	if err := row.Scan(&rec.ID, &rec.GameID, &rec.TableID, &rec.Result, &resultType, &winner, &multiplier,
		&cardValue, &color, &slots, &payout, &extractedAt, &expiresAt, &retention, &priority, &roundID,
		&dealer, &totalPlayers, &metadata); err != nil {
		return results.GameResult{}, err
	}
	rec.ResultType = results.ResultType(resultType)
	rec.RetentionPeriod = results.RetentionPeriod(retention)
	rec.Priority = results.Priority(priority)
	rec.Winner = textVal(winner)
	rec.CardValue = textVal(cardValue)
	rec.Color = textVal(color)
	rec.RoundID = textVal(roundID)
	rec.DealerName = textVal(dealer)
	rec.Multiplier = floatPtrVal(multiplier)
	rec.Payout = floatPtrVal(payout)
	rec.TotalPlayers = intPtrVal(totalPlayers)
	if len(slots) > 0 {
		rec.Slots = slots
	}
	rec.Metadata = metadataVal(metadata)
	rec.ExtractedAt = extractedAt.UTC()
	rec.ExpiresAt = expiresAt.UTC()
	return rec, nil
}
