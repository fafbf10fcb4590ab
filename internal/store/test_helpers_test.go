package store_test

import (
	"context"
	"testing"
	"time"

	"casino-relay/internal/results"
	"casino-relay/internal/store"
	"casino-relay/internal/testutil"
)

func openStore(t *testing.T) (*store.Store, context.Context, func()) {
	t.Helper()
	st, cleanup := testutil.OpenTestStore(t)
	return st, context.Background(), cleanup
}

func mustSaveResult(t *testing.T, st *store.Store, ctx context.Context, rec results.GameResult) {
	t.Helper()
	inserted, err := st.SaveResult(ctx, rec)
	if err != nil {
		t.Fatalf("save result: %v", err)
	}
	if !inserted {
		t.Fatalf("expected %s to be inserted", rec.ID)
	}
}

func sampleResult(tableID, roundID, result string, extracted time.Time, period results.RetentionPeriod) results.GameResult {
	return results.GameResult{
		ID:              store.NewIDAt(extracted),
		GameID:          "sweet-bonanza",
		TableID:         tableID,
		Result:          result,
		ResultType:      results.ClassifyResult(result),
		ExtractedAt:     extracted,
		ExpiresAt:       period.ExpiresAt(extracted),
		RetentionPeriod: period,
		Priority:        results.PriorityNormal,
		RoundID:         roundID,
	}
}
