// Terminal client for the duel server. Commands are read line by line
// from stdin; state pushes render as a compact board. Intended for
// manual play and for poking at a running server during development.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"bullscows-server/internal/client"
	"bullscows-server/internal/game"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/websocket", "server websocket URL")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sessionToken string

	c := client.New(client.Config{URL: *serverURL}, client.Handlers{
		OnState: func(s client.Snapshot) {
			render(s)
		},
		OnError: func(msg string) {
			fmt.Printf("! %s\n", msg)
		},
		OnRedirect: func(path string) {
			fmt.Printf("-> redirected to %s\n", path)
		},
		OnPoke: func(from string) {
			fmt.Printf("*** %s pokes you — it's your move ***\n", from)
		},
		OnSession: func(token string) {
			sessionToken = token
			fmt.Println("(session token saved; 'reconnect' will reuse it)")
		},
		OnGiveUp: func(err error) {
			log.Printf("Gave up reconnecting: %v", err)
			cancel()
		},
	})
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}

	fmt.Println("Commands: create <name> | join <name> <code> | watch <code> | secret <code>")
	fmt.Println("          guess <code> | poke | restart | leave <code> | reconnect | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "create":
			if len(fields) < 2 {
				fmt.Println("usage: create <name>")
				continue
			}
			err = c.CreateRoom(ctx, fields[1])

		case "join":
			if len(fields) < 3 {
				fmt.Println("usage: join <name> <code>")
				continue
			}
			err = c.JoinRoom(ctx, fields[1], fields[2])

		case "watch":
			if len(fields) < 2 {
				fmt.Println("usage: watch <code>")
				continue
			}
			err = c.Spectate(ctx, fields[1])

		case "secret":
			if len(fields) < 2 {
				fmt.Println("usage: secret <code>")
				continue
			}
			err = c.SetSecret(ctx, fields[1])

		case "guess":
			if len(fields) < 2 {
				fmt.Println("usage: guess <code>")
				continue
			}
			err = c.SubmitGuess(ctx, fields[1])

		case "poke":
			err = c.Poke(ctx)

		case "restart":
			err = c.Restart(ctx)

		case "leave":
			if len(fields) < 2 {
				fmt.Println("usage: leave <code>")
				continue
			}
			err = c.LeaveRoom(ctx, fields[1])

		case "reconnect":
			if sessionToken == "" {
				fmt.Println("no session token yet")
				continue
			}
			err = c.Reconnect(ctx, sessionToken)

		case "quit":
			return

		default:
			fmt.Printf("unknown command %q\n", fields[0])
			continue
		}

		if err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}

func render(s client.Snapshot) {
	g := s.Game
	fmt.Printf("\n=== Room %s | %s | spectators: %d ===\n", g.RoomCode, g.Status, g.Spectators)

	if g.Status == game.StatusActive {
		fmt.Printf("Turn: %s\n", g.Turn)
	}
	if g.Status == game.StatusCompleted && g.Winner != "" {
		fmt.Printf("Winner: %s\n", g.Player(game.PlayerID(g.Winner)).Name)
	}

	for _, p := range []*game.PlayerState{g.P1, g.P2} {
		if p.Name == "" {
			fmt.Printf("[%s] (open slot)\n", p.ID)
			continue
		}
		marker := " "
		if string(p.ID) == s.PlayerID {
			marker = "*"
		}
		fmt.Printf("[%s]%s %s — attacks received:\n", p.ID, marker, p.Name)
		for i, guess := range p.Guesses {
			fmt.Printf("  %2d. %s  %d bulls, %d cows\n", i+1, guess.Code, guess.Bulls, guess.Cows)
		}
	}
	fmt.Print("> ")
}
