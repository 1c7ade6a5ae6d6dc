// Command replica is a terminal client for the chat service. It talks to
// the server over the WebSocket channel.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	gws "github.com/gorilla/websocket"
	"github.com/peterh/liner"
)

func main() {
	defaultURL := os.Getenv("SYNAPSE_URL")
	if defaultURL == "" {
		defaultURL = "ws://localhost:8080/ws"
	}

	serverURL := flag.String("url", defaultURL, "WebSocket endpoint of the chat server")
	sessionToken := flag.String("token", "", "session token to attach to an existing session")
	flag.Parse()

	endpoint, err := withToken(*serverURL, *sessionToken)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid server url:", err)
		os.Exit(1)
	}

	conn, _, err := gws.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect to server:", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := newChatClient(conn)
	hello, err := client.await(isSession)
	if err != nil {
		fmt.Fprintln(os.Stderr, "no session from server:", err)
		os.Exit(1)
	}

	fmt.Println(infoStyle.Render(fmt.Sprintf("Connected. Session %s, model %s.", hello.SessionID, hello.Model)))
	fmt.Println(infoStyle.Render("Commands: /clear, /model <id>, /models, /history, /exit"))

	cli := newPrompt()
	defer cli.Close()

	for {
		input, err := cli.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C or Ctrl+D
			fmt.Println()
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if !client.command(input) {
				return
			}
			continue
		}

		client.send(input)
	}
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// newPrompt returns line editing with history kept in the user config dir.
func newPrompt() *prompt {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	p := &prompt{line: line, historyFile: dir + string(os.PathSeparator) + "synapse_history"}

	if f, err := os.Open(p.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return p
}

type prompt struct {
	line        *liner.State
	historyFile string
}

func (p *prompt) ReadInput(label string) (string, error) {
	input, err := p.line.Prompt(label)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		p.line.AppendHistory(input)
	}
	return input, nil
}

func (p *prompt) Close() {
	if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		p.line.WriteHistory(f)
		f.Close()
	}
	p.line.Close()
}
