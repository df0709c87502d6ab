package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/blockworld/internal/api"
	"github.com/annel0/blockworld/internal/eventbus"
)

const (
	defaultServerAddr = "localhost:8088"
	timeFormat        = "15:04:05.000"
)

func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "адрес REST API сервера мира")
		command    = flag.String("cmd", "tail", "команда: tail, stats")
		eventTypes = flag.String("types", "", "фильтр типов событий через запятую")
		limit      = flag.Int("limit", 0, "завершиться после N событий (0 - без ограничения)")
		raw        = flag.Bool("raw", false, "выводить события как JSON")
	)
	flag.Parse()

	switch *command {
	case "tail":
		if err := tailEvents(os.Stdout, *serverAddr, *eventTypes, *limit, *raw); err != nil {
			log.Fatalf("❌ tail: %v", err)
		}
	case "stats":
		if err := showStats(os.Stdout, *serverAddr); err != nil {
			log.Fatalf("❌ stats: %v", err)
		}
	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: tail, stats")
		os.Exit(1)
	}
}

// tailEvents печатает события мира из websocket /api/events
func tailEvents(w io.Writer, addr, types string, limit int, raw bool) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/events"}
	if types != "" {
		u.RawQuery = url.Values{"types": {types}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("подключение к %s: %w", u.String(), err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}()

	fmt.Fprintf(w, "🎬 События %s (types=%q)\n", u.String(), types)

	for n := 0; limit == 0 || n < limit; n++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if raw {
			fmt.Fprintln(w, string(data))
			continue
		}

		var msg api.EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Fprintf(w, "⚠️  нераспознанное сообщение: %s\n", data)
			continue
		}
		fmt.Fprintln(w, formatEvent(&msg))
	}
	return nil
}

// formatEvent кратко описывает событие мира
func formatEvent(msg *api.EventMessage) string {
	prefix := fmt.Sprintf("[%s] %-14s", msg.Timestamp.Local().Format(timeFormat), msg.EventType)

	switch msg.EventType {
	case eventbus.TypeChunkLoaded:
		var p eventbus.ChunkLoaded
		if json.Unmarshal(msg.Payload, &p) == nil {
			return fmt.Sprintf("%s чанк (%d,%d) origin=%s", prefix, p.Coords.X, p.Coords.Y, p.Origin)
		}
	case eventbus.TypeChunkEvicted:
		var p eventbus.ChunkEvicted
		if json.Unmarshal(msg.Payload, &p) == nil {
			return fmt.Sprintf("%s чанк (%d,%d) persisted=%v", prefix, p.Coords.X, p.Coords.Y, p.Persisted)
		}
	case eventbus.TypeBlockChanged:
		var p eventbus.BlockChanged
		if json.Unmarshal(msg.Payload, &p) == nil {
			return fmt.Sprintf("%s (%d,%d) %s: %s -> %s", prefix, p.Pos.X, p.Pos.Y, p.Intent, p.Previous, p.Current)
		}
	}
	return fmt.Sprintf("%s %s", prefix, strings.TrimSpace(string(msg.Payload)))
}

// showStats печатает /api/stats
func showStats(w io.Writer, addr string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/stats")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body api.GenericResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("ответ сервера: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("сервер ответил %d: %s", resp.StatusCode, body.Message)
	}

	out, err := json.MarshalIndent(body.Data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
