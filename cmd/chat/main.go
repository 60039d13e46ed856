// Command chat is a terminal client for the gateway.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

var (
	serverURL  = flag.String("url", "ws://localhost:8080/ws", "Gateway websocket URL")
	userID     = flag.String("uuid", "", "Resume an existing session")
	userName   = flag.String("name", "", "Display name for a new session")
	heartbeats = flag.Bool("heartbeats", false, "Print heartbeat frames")
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

// frame is any server frame; unused fields stay zero.
type frame struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	IsNew       bool   `json:"isNew"`
	Message     string `json:"message"`
	Time        int64  `json:"time"`
}

func main() {
	flag.Parse()

	target, err := dialURL(*serverURL, *userID, *userName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", *serverURL, err)
		os.Exit(1)
	}
	defer conn.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
		os.Exit(0)
	}()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				fmt.Println(red("connection closed: " + err.Error()))
				os.Exit(0)
			}
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			if line := render(f, *heartbeats); line != "" {
				fmt.Println(line)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.ToLower(text) == "exit" {
			break
		}
		msg := entities.ChatMessage{
			ID:        uuid.NewString(),
			Type:      entities.MessageOutgoing,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
	}
}

// dialURL adds the session handshake parameters to base.
func dialURL(base, id, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("url must use ws:// or wss://, got %q", base)
	}
	q := u.Query()
	if id != "" {
		q.Set("uuid", id)
	}
	if name != "" {
		q.Set("userName", name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// render formats a server frame for the terminal. Echoes of our own
// messages and, unless asked for, heartbeats render as nothing.
func render(f frame, showHeartbeats bool) string {
	switch f.Type {
	case "init":
		state := "resumed session"
		if f.IsNew {
			state = "new session"
		}
		return fmt.Sprintf("%s %s as %s (resume with -uuid %s)", boldGreen("connected:"), state, boldCyan(f.DisplayName), f.UUID)
	case string(entities.MessageIncoming):
		return boldCyan("Assistant: ") + f.Text
	case string(entities.MessageOutgoing):
		return ""
	case "heartbeat":
		if !showHeartbeats {
			return ""
		}
		return faint(fmt.Sprintf("heartbeat %s", time.UnixMilli(f.Time).Format(time.TimeOnly)))
	case "error":
		return red("error: " + f.Message)
	default:
		return faint("unknown frame " + f.Type)
	}
}
