// event-tail печатает события мира из стрима NATS JetStream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/voxel-engine/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		url        = flag.String("url", "nats://localhost:4222", "NATS server URL")
		stream     = flag.String("stream", eventbus.DefaultStream, "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Event sources filter (comma-separated)")
		since      = flag.String("since", "1h", "Replay window (e.g. 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Stop after N events (0 - no limit)")
		follow     = flag.Bool("follow", false, "Keep waiting for new events (like tail -f)")
	)
	flag.Parse()

	switch *command {
	case "types":
		showTypes()
		return
	case "tail", "stats":
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}

	bus, err := eventbus.NewJetStreamBus(*url, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "tail":
		from, err := parseSinceTime(*since, time.Now())
		if err != nil {
			log.Fatalf("❌ Bad -since: %v", err)
		}
		filter := eventbus.Filter{Types: parseStringList(*eventTypes), Sources: parseStringList(*sources)}
		if err := tailEvents(ctx, bus, filter, from, *limit, *follow); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		if err := showStats(bus, *stream); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	}
}

// tailEvents печатает сохранённые события с момента from; без follow выходит,
// когда поток затих на секунду.
func tailEvents(ctx context.Context, bus *eventbus.JetStreamBus, f eventbus.Filter, from time.Time, limit int, follow bool) error {
	fmt.Printf("🎬 Tailing events since %s (limit: %d, follow: %v)\n", from.UTC().Format(timeFormat), limit, follow)

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Replay(ctx, f, from, func(ctx context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	idle := time.NewTimer(time.Second)
	defer idle.Stop()

	count := 0
	for {
		select {
		case ev := <-events:
			printEvent(ev)
			count++
			if limit > 0 && count >= limit {
				fmt.Printf("📊 Reached limit of %d events\n", limit)
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(time.Second)
		case <-idle.C:
			if !follow {
				fmt.Printf("📊 Shown %d events\n", count)
				return nil
			}
			idle.Reset(time.Second)
		case <-ctx.Done():
			fmt.Printf("\n📊 Shown %d events\n", count)
			return nil
		}
	}
}

func showStats(bus *eventbus.JetStreamBus, stream string) error {
	st, err := bus.StreamStats()
	if err != nil {
		return err
	}
	fmt.Printf("📈 Stream %s\n", stream)
	fmt.Printf("  Messages: %d (%d bytes)\n", st.Messages, st.Bytes)
	fmt.Printf("  Sequence: %d..%d\n", st.FirstSeq, st.LastSeq)
	if st.Messages > 0 {
		fmt.Printf("  Period:   %s .. %s\n", st.First.UTC().Format(timeFormat), st.Last.UTC().Format(timeFormat))
	}
	return nil
}

func showTypes() {
	fmt.Println("📋 Event types:")
	for _, t := range eventbus.AllTypes {
		fmt.Printf("  %s\n", t)
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s p=%d\n",
		ev.Timestamp.Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID,
		ev.Priority)
	if len(ev.Payload) > 0 && string(ev.Payload) != "null" {
		fmt.Printf("  %s\n", ev.Payload)
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное RFC3339
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		return time.Parse(time.RFC3339, since)
	}

	return from.Add(-duration), nil
}
