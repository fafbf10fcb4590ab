package store_test

import (
	"errors"
	"testing"

	"casino-relay/internal/store"
)

func TestGamesCatalogQueries(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	games := []store.Game{
		{GameID: "sweet-bonanza", GameType: "slots", Name: "Sweet Bonanza CandyLand", TableIDs: []string{"701", "702"}, IsActive: true},
		{GameID: "mega-wheel", GameType: "wheel", Name: "Mega Wheel", TableIDs: []string{"801"}, IsActive: true},
		{GameID: "retired", GameType: "wheel", Name: "Old Wheel", TableIDs: []string{"901"}, IsActive: false},
	}
	for _, g := range games {
		if err := st.UpsertGame(ctx, g); err != nil {
			t.Fatalf("upsert %s: %v", g.GameID, err)
		}
	}

	active, err := st.ListActiveGames(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].GameID != "mega-wheel" {
		t.Fatalf("unexpected active games: %+v", active)
	}

	g, err := st.FindGameByTable(ctx, "702")
	if err != nil || g.GameID != "sweet-bonanza" {
		t.Fatalf("find by table: %+v %v", g, err)
	}
	if _, err := st.FindGameByTable(ctx, "901"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("inactive game must not resolve, got %v", err)
	}

	games[0].TableIDs = []string{"701"}
	if err := st.UpsertGame(ctx, games[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := st.FindGameByTable(ctx, "702"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("removed table must not resolve, got %v", err)
	}
	got, err := st.GetGame(ctx, "sweet-bonanza")
	if err != nil || len(got.TableIDs) != 1 {
		t.Fatalf("get game: %+v %v", got, err)
	}
}
