package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/wfunc/bopserver/protocol"
)

type inbound struct {
	Type    protocol.Type   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// send writes one {type, payload} frame.
func send(c *websocket.Conn, typ protocol.Type, payload any) error {
	return c.WriteJSON(protocol.Message{Type: typ, Payload: payload})
}

// parse turns a console line into a message; ok is false for unknown input.
func parse(line string) (protocol.Type, any, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, false
	}
	switch fields[0] {
	case "team":
		if len(fields) < 2 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", nil, false
		}
		return protocol.TypeJoinTeam, map[string]any{"teamIndex": idx}, true
	case "start":
		return protocol.TypeStartGame, nil, true
	case "got":
		difficulty := "easy"
		if len(fields) > 1 {
			difficulty = fields[1]
		}
		return protocol.TypeGotIt, map[string]any{"difficulty": difficulty}, true
	case "skip":
		return protocol.TypeSkip, nil, true
	case "bop":
		return protocol.TypeBop, nil, true
	case "end":
		return protocol.TypeEndTurn, nil, true
	case "next":
		return protocol.TypeNextTurn, nil, true
	case "voice":
		return protocol.TypeToggleVoice, map[string]any{"enabled": len(fields) > 1 && fields[1] == "on"}, true
	case "leave":
		return protocol.TypeLeaveRoom, nil, true
	}
	return "", nil, false
}

func main() {
	addr := flag.String("addr", "localhost:22222", "server host:port")
	name := flag.String("name", "player", "display name")
	code := flag.String("code", "", "room code to join; empty creates a room")
	id := flag.String("id", "", "player id to reconnect with")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var msg inbound
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			if msg.Type == protocol.TypeTick {
				continue
			}
			log.Printf("<- %s %s", msg.Type, msg.Payload)
		}
	}()

	if *code == "" {
		err = send(c, protocol.TypeCreateRoom, map[string]any{"playerName": *name, "playerId": *id})
	} else {
		err = send(c, protocol.TypeJoinRoom, map[string]any{"code": *code, "playerName": *name, "playerId": *id})
	}
	if err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: team N | start | got easy|hard | skip | bop | end | next | voice on|off | leave")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			typ, payload, ok := parse(line)
			if !ok {
				log.Printf("Unknown command %q", line)
				continue
			}
			if err := send(c, typ, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
