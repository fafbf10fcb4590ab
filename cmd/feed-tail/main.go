package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"casino-relay/internal/config"
	"casino-relay/internal/upstream"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadProbe()
	if err != nil {
		log.Fatal().Err(err).Msg("load probe config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.UpstreamURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.UpstreamURL).Msg("dial failed")
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for _, msg := range controlFrames(cfg) {
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatal().Err(err).Str("type", msg.Type).Msg("send failed")
		}
		log.Info().Str("type", msg.Type).Str("key", msg.Key).Msg("sent")
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("read failed")
			}
			return
		}
		fmt.Println(summarize(data))
	}
}

// controlFrames requests the table catalog and then subscribes each probe table.
func controlFrames(cfg config.ProbeConfig) []upstream.ControlMessage {
	out := []upstream.ControlMessage{{Type: upstream.MsgAvailable, CasinoID: cfg.CasinoID}}
	for _, t := range cfg.Tables {
		if t == "" {
			continue
		}
		out = append(out, upstream.ControlMessage{
			Type:     upstream.MsgSubscribe,
			Key:      t,
			CasinoID: cfg.CasinoID,
			Currency: cfg.Currency,
		})
	}
	return out
}

// summarize prefixes a frame with its type and table id when it has them.
func summarize(data []byte) string {
	var base struct {
		Type    string              `json:"type"`
		TableID upstream.FlexString `json:"tableId"`
		Data    json.RawMessage     `json:"data"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return "invalid " + string(data)
	}
	table := base.TableID
	if table == "" && len(base.Data) > 0 {
		var nested struct {
			TableID upstream.FlexString `json:"tableId"`
		}
		if json.Unmarshal(base.Data, &nested) == nil {
			table = nested.TableID
		}
	}
	if table == "" {
		return fmt.Sprintf("%s %s", base.Type, data)
	}
	return fmt.Sprintf("%s table=%s %s", base.Type, table, data)
}
