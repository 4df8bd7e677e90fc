// Command tape connects to the simulator WebSocket feed, subscribes to
// symbols, and prints every message as a ticker-tape line.
//
// Usage:
//
//	tape                                 # connect to localhost:8100, subscribe to all
//	tape -url ws://host:8100/feed        # custom endpoint
//	tape -symbols SAP.DE,BMW.DE          # subscribe to specific symbols
//	tape -select BMW.DE                  # change the selected instrument on connect
//	tape -raw                            # print the JSON frames unchanged
//	tape -stats 10                       # print message rate stats every N seconds
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ndrandal/marketsim/internal/logging"
	"github.com/ndrandal/marketsim/internal/wire"
)

func main() {
	url := flag.String("url", "ws://localhost:8100/feed", "WebSocket endpoint")
	symbols := flag.String("symbols", "*", "Comma-separated symbols or * for all")
	selectSym := flag.String("select", "", "Symbol to select after connecting")
	raw := flag.Bool("raw", false, "Print raw JSON frames")
	statsInterval := flag.Int("stats", 0, "Print message rate stats every N seconds (0 = off)")
	flag.Parse()

	log := logging.New("info", "console", os.Stderr)

	log.Info().Str("url", *url).Msg("connecting")
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	symList := strings.Split(*symbols, ",")
	sendControl(conn, log, map[string]any{"action": "subscribe", "symbols": symList})
	if *selectSym != "" {
		sendControl(conn, log, map[string]any{"action": "select", "symbol": *selectSym})
	}
	log.Info().Strs("symbols", symList).Msg("subscribed")

	var msgCount atomic.Uint64
	if *statsInterval > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(*statsInterval) * time.Second)
			defer ticker.Stop()
			var last uint64
			for range ticker.C {
				cur := msgCount.Load()
				rate := float64(cur-last) / float64(*statsInterval)
				log.Info().Uint64("total", cur).Float64("per_sec", rate).Msg("stats")
				last = cur
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Fatal().Err(err).Msg("read")
		}
		msgCount.Add(1)

		if *raw {
			fmt.Println(string(data))
			continue
		}
		m, err := wire.DecodeJSON(data)
		if err != nil {
			log.Warn().Err(err).Int("bytes", len(data)).Msg("undecodable frame")
			continue
		}
		fmt.Println(formatLine(m))
	}
}

func sendControl(conn *websocket.Conn, log zerolog.Logger, msg map[string]any) {
	data, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Fatal().Err(err).Msg("send control")
	}
}

func fmtTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05.000")
}

func formatLine(m *wire.Message) string {
	ts := fmtTimestamp(m.Timestamp)
	switch m.Type {
	case wire.MsgDirectory:
		return fmt.Sprintf("DIR      %s  %-8s  %-28s  %-22s  %10s",
			ts, m.Symbol, m.Name, m.Sector, wire.FormatPrice(m.Price))
	case wire.MsgQuote:
		return fmt.Sprintf("QUOTE    %s  %-8s  %10s  %+9.2f  %+7.2f%%  vol=%-7s  %s",
			ts, m.Symbol, wire.FormatPrice(m.Price), m.Change, m.ChangePercent, m.Volume, m.Reason)
	case wire.MsgIndex:
		return fmt.Sprintf("INDEX    %s  %-8s  %10s  %+9.2f  %+7.2f%%",
			ts, m.Name, wire.FormatPrice(m.Price), m.Change, m.ChangePercent)
	case wire.MsgRegime:
		line := fmt.Sprintf("REGIME   %s  %-20s  vol=%.2f (%s)  trend=%+.2f (%s)  %s",
			ts, m.Kind, m.Volatility, m.Level, m.Trend, m.Descriptor, m.Description)
		if len(m.Outperformers) > 0 {
			line += fmt.Sprintf("  up=%s down=%s",
				strings.Join(m.Outperformers, ","), strings.Join(m.Underperformers, ","))
		}
		return line
	case wire.MsgStatus:
		if m.Symbol != "" {
			return fmt.Sprintf("STATUS   %s  %s  %s", ts, m.Status, m.Symbol)
		}
		return fmt.Sprintf("STATUS   %s  %s", ts, m.Status)
	default:
		return fmt.Sprintf("UNKNOWN  %s  type=%s", ts, m.Type)
	}
}
