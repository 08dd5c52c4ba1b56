// Interactive terminal viewer for a live room. Connects to the websocket
// endpoint, renders incoming frames and lets you send danmaku from stdin.
//
// Usage:
//
//	go run ./cmd/wsclient -room demo -persona aria
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"
)

var (
	userColor     = color.New(color.FgCyan, color.Bold)
	botColor      = color.New(color.FgWhite)
	systemColor   = color.New(color.FgYellow)
	audioColor    = color.New(color.FgMagenta)
	eofColor      = color.New(color.FgGreen)
	promptPainter = color.New(color.FgHiBlack)
)

func main() {
	baseURL := flag.String("url", "ws://localhost:3000", "server base URL")
	room := flag.String("room", "demo", "room ID to join")
	personaID := flag.String("persona", "", "persona ID (empty = server default)")
	flag.Parse()

	target := fmt.Sprintf("%s/ws/rooms/%s", strings.TrimRight(*baseURL, "/"), *room)
	if *personaID != "" {
		target += "?persona_id=" + *personaID
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", target, err)
	}
	defer conn.Close()

	eofColor.Printf("joined room %q, type a message and press enter\n", *room)

	go func() {
		streaming := false
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				systemColor.Printf("\nconnection closed: %v\n", err)
				os.Exit(0)
			}
			frame := string(raw)
			switch {
			case strings.HasPrefix(frame, "[USER:") && strings.HasSuffix(frame, "]"):
				if streaming {
					fmt.Println()
					streaming = false
				}
				userColor.Printf("<< %s\n", frame[len("[USER:"):len(frame)-1])
			case strings.HasPrefix(frame, "[SYSTEM:") && strings.HasSuffix(frame, "]"):
				if streaming {
					fmt.Println()
					streaming = false
				}
				systemColor.Printf("!! %s\n", frame[len("[SYSTEM:"):len(frame)-1])
			case strings.HasPrefix(frame, "[AUDIO:") && strings.HasSuffix(frame, "]"):
				if streaming {
					fmt.Println()
					streaming = false
				}
				audioColor.Printf("~~ audio frame (%d bytes base64)\n", len(frame)-len("[AUDIO:]"))
			case frame == "[EOF]":
				if streaming {
					fmt.Println()
					streaming = false
				}
				eofColor.Println("-- end of turn --")
			default:
				// Streamed reply fragment, print inline.
				botColor.Print(frame)
				streaming = true
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptPainter.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			log.Fatalf("write: %v", err)
		}
	}
}
