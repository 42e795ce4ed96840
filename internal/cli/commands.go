// Package cli implements the interactive terminal interface: the live
// chat feed plus commands for status, rankings, and room bookmarks.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/lantern-live/lantern/internal/config"
	"github.com/lantern-live/lantern/internal/db"
	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/live"
	"github.com/lantern-live/lantern/internal/window"
)

// SessionProvider exposes the currently active live session.
type SessionProvider interface {
	Current() *live.Session
}

// CLI provides the interactive terminal interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	sessions SessionProvider
	rooms    *db.RoomStore
	recent   *window.RecentWindow

	mu       sync.Mutex
	lastRank []events.RankEntry
	muted    bool
}

// NewCLI creates the CLI and wires its feed printer into the event bus.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, sessions SessionProvider,
	rooms *db.RoomStore, recent *window.RecentWindow) *CLI {

	c := &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		sessions: sessions,
		rooms:    rooms,
		recent:   recent,
	}

	c.subscribeFeed()
	eventBus.Subscribe(events.EventOnlineRank, "cli.rank", c.onOnlineRank)

	return c
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nLantern ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("lantern> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.Fields(line)
			cmd := strings.ToLower(parts[0])
			args := parts[1:]

			if err := c.execute(ctx, cmd, args); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "rank":
		c.printRank()
	case "recent":
		c.printRecent(args)
	case "rooms":
		return c.printRooms()
	case "bookmark":
		return c.cmdBookmark(args)
	case "unbookmark":
		return c.cmdUnbookmark(args)
	case "mute":
		c.cmdMute()
	case "unmute":
		c.cmdUnmute()
	case "quit", "exit", "q":
		fmt.Println("Shutting down Lantern...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔═══════════════════════════════════════════════════════╗")
	fmt.Println("║                   Lantern Commands                    ║")
	fmt.Println("╠═══════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show session and room status      ║")
	fmt.Println("║  rank               Show the room's viewer ranking    ║")
	fmt.Println("║  recent [n]         Show the last n events            ║")
	fmt.Println("║  rooms              List bookmarked rooms             ║")
	fmt.Println("║  bookmark <id> [a]  Bookmark a room with alias a      ║")
	fmt.Println("║  unbookmark <id>    Remove a room bookmark            ║")
	fmt.Println("║  mute               Pause the chat feed               ║")
	fmt.Println("║  unmute             Resume the chat feed              ║")
	fmt.Println("║  quit               Shutdown Lantern                  ║")
	fmt.Println("║  help               Show this help message            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays session status in a formatted table.
func (c *CLI) printStatus() {
	sess := c.sessions.Current()
	if sess == nil {
		fmt.Println("No active session.")
		return
	}

	stats := sess.Stats()

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Room", "State", "Popularity", "Events", "Dropped"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.Append([]string{
		fmt.Sprintf("%d", sess.RoomID()),
		sess.State().String(),
		fmt.Sprintf("%d", stats.Popularity),
		fmt.Sprintf("%d", stats.EventsSeen),
		fmt.Sprintf("%d", stats.EventsDropped),
	})
	tw.Render()

	if reason := sess.CloseReason(); reason != "" {
		fmt.Printf("Close reason: %s\n", reason)
	}
	fmt.Println()
}

// printRank displays the last received viewer ranking.
func (c *CLI) printRank() {
	c.mu.Lock()
	entries := append([]events.RankEntry(nil), c.lastRank...)
	c.mu.Unlock()

	if len(entries) == 0 {
		fmt.Println("No ranking received yet.")
		return
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Rank", "Viewer", "UID", "Score"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, e := range entries {
		tw.Append([]string{
			fmt.Sprintf("%d", e.Rank),
			e.Uname,
			fmt.Sprintf("%d", e.UID),
			e.Score,
		})
	}
	tw.Render()
	fmt.Println()
}

// printRecent replays the last events from the window.
func (c *CLI) printRecent(args []string) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}

	entries := c.recent.Snapshot()
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if len(entries) == 0 {
		fmt.Println("No events yet.")
		return
	}

	for _, entry := range entries {
		fmt.Printf("[%s] %s\n", entry.Time.Format("15:04:05"), formatEvent(entry.Event))
	}
}

// printRooms displays bookmarked rooms.
func (c *CLI) printRooms() error {
	rooms, err := c.rooms.List()
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Println("No bookmarked rooms. Use 'bookmark <room_id> [alias]'.")
		return nil
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Room", "Alias", "Last Popularity", "Last Seen"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, r := range rooms {
		lastSeen := "-"
		if !r.LastSeen.IsZero() {
			lastSeen = r.LastSeen.Format(time.RFC3339)
		}
		tw.Append([]string{
			fmt.Sprintf("%d", r.RoomID),
			r.Alias,
			fmt.Sprintf("%d", r.LastPopularity),
			lastSeen,
		})
	}
	tw.Render()
	fmt.Println()
	return nil
}

func (c *CLI) cmdBookmark(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bookmark <room_id> [alias]")
	}
	roomID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || roomID <= 0 {
		return fmt.Errorf("invalid room id: %s", args[0])
	}

	alias := strings.Join(args[1:], " ")
	if err := c.rooms.Bookmark(roomID, alias); err != nil {
		return err
	}
	fmt.Printf("Bookmarked room %d\n", roomID)
	return nil
}

func (c *CLI) cmdUnbookmark(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: unbookmark <room_id>")
	}
	roomID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid room id: %s", args[0])
	}

	if err := c.rooms.Remove(roomID); err != nil {
		return err
	}
	fmt.Printf("Removed bookmark for room %d\n", roomID)
	return nil
}

// cmdMute pauses the chat feed by unsubscribing the feed printer.
func (c *CLI) cmdMute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted {
		fmt.Println("Feed is already muted.")
		return
	}
	c.muted = true
	c.eventBus.Unsubscribe(events.EventDanmaku, "cli.feed.danmaku")
	c.eventBus.Unsubscribe(events.EventEnter, "cli.feed.enter")
	c.eventBus.Unsubscribe(events.EventGift, "cli.feed.gift")
	fmt.Println("Feed muted. Type 'unmute' to resume.")
}

// cmdUnmute resumes the chat feed.
func (c *CLI) cmdUnmute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.muted {
		fmt.Println("Feed is not muted.")
		return
	}
	c.muted = false
	c.subscribeFeed()
	fmt.Println("Feed resumed.")
}

// subscribeFeed wires the feed printer handlers into the bus.
func (c *CLI) subscribeFeed() {
	c.eventBus.Subscribe(events.EventDanmaku, "cli.feed.danmaku", c.onFeedEvent)
	c.eventBus.Subscribe(events.EventEnter, "cli.feed.enter", c.onFeedEvent)
	c.eventBus.Subscribe(events.EventGift, "cli.feed.gift", c.onFeedEvent)
}

// onFeedEvent prints one feed line for a live-room event.
func (c *CLI) onFeedEvent(ctx context.Context, event events.Event) error {
	fmt.Printf("\r%s\nlantern> ", formatEvent(event))
	return nil
}

// onOnlineRank remembers the latest ranking for the 'rank' command.
func (c *CLI) onOnlineRank(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OnlineRankPayload)
	if !ok {
		return nil
	}
	c.mu.Lock()
	c.lastRank = payload.Entries
	c.mu.Unlock()
	return nil
}

// formatEvent renders one event as a human-readable feed line.
func formatEvent(event events.Event) string {
	switch p := event.Payload.(type) {
	case events.DanmakuPayload:
		return fmt.Sprintf("%s: %s", p.Username, p.Content)
	case events.EnterPayload:
		return fmt.Sprintf("→ %s entered the room", p.Username)
	case events.GiftPayload:
		return fmt.Sprintf("🎁 %s sent %s ×%d", p.Username, p.GiftName, p.Count)
	case events.PopularityPayload:
		return fmt.Sprintf("popularity: %d", p.Count)
	case events.SessionOpenPayload:
		return fmt.Sprintf("connected to room %d via %s", p.RoomID, p.Host)
	case events.SessionClosedPayload:
		return fmt.Sprintf("session closed: %s", p.Reason)
	default:
		return fmt.Sprintf("%s event", event.Type)
	}
}
