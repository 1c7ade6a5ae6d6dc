package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	gws "github.com/gorilla/websocket"

	"github.com/satriahrh/synapse/adapters/websocket"
	"github.com/satriahrh/synapse/domain"
)

const replyTimeout = 2 * time.Minute

var errDisconnected = errors.New("disconnected from server")

type chatClient struct {
	conn     *gws.Conn
	frames   chan websocket.Frame
	renderer *glamour.TermRenderer
}

func newChatClient(conn *gws.Conn) *chatClient {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		renderer = nil
	}

	c := &chatClient{conn: conn, frames: make(chan websocket.Frame, 16), renderer: renderer}
	go c.readLoop()
	return c
}

func (c *chatClient) readLoop() {
	defer close(c.frames)
	for {
		var f websocket.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		c.frames <- f
	}
}

// await drops frames until match accepts one. Error frames end the wait.
func (c *chatClient) await(match func(websocket.Frame) bool) (websocket.Frame, error) {
	timeout := time.After(replyTimeout)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return websocket.Frame{}, errDisconnected
			}
			if f.Type == websocket.FrameError {
				return f, errors.New(f.Error)
			}
			if match(f) {
				return f, nil
			}
		case <-timeout:
			return websocket.Frame{}, fmt.Errorf("no reply within %s", replyTimeout)
		}
	}
}

func isSession(f websocket.Frame) bool { return f.Type == websocket.FrameSession }

func isType(t string) func(websocket.Frame) bool {
	return func(f websocket.Frame) bool { return f.Type == t }
}

func isUserTurn(text string) func(websocket.Frame) bool {
	return func(f websocket.Frame) bool {
		return f.Type == websocket.FrameTurn && f.Turn != nil && f.Turn.Role == domain.UserRole && f.Turn.Content == text
	}
}

func isReply(f websocket.Frame) bool {
	return f.Type == websocket.FrameTurn && f.Turn != nil && f.Turn.Role == domain.AssistantRole
}

func (c *chatClient) send(text string) {
	if err := c.conn.WriteJSON(websocket.Frame{Type: websocket.FrameMessage, Text: text}); err != nil {
		fmt.Println(warningStyle.Render("error: " + err.Error()))
		return
	}
	f, err := c.awaitReply(text)
	if err != nil {
		fmt.Println(warningStyle.Render("error: " + err.Error()))
		return
	}
	fmt.Println(c.render(f.Turn.Content))
}

// awaitReply waits for the echo of text and then the assistant turn after
// it, so a reply that arrives after an earlier timeout is skipped.
func (c *chatClient) awaitReply(text string) (websocket.Frame, error) {
	if _, err := c.await(isUserTurn(text)); err != nil {
		return websocket.Frame{}, err
	}
	return c.await(isReply)
}

// command runs a slash command and reports whether the session continues.
func (c *chatClient) command(input string) bool {
	fields := strings.Fields(input)

	switch fields[0] {
	case "/exit", "/quit":
		c.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
		return false

	case "/clear":
		c.request(websocket.Frame{Type: websocket.FrameClear}, isType(websocket.FrameCleared), func(websocket.Frame) {
			fmt.Println("Conversation cleared.")
		})

	case "/model":
		if len(fields) < 2 {
			fmt.Println("usage: /model <id>")
			return true
		}
		c.request(websocket.Frame{Type: websocket.FrameModel, Model: fields[1]}, isType(websocket.FrameModel), func(f websocket.Frame) {
			fmt.Println("Model set to", f.Model)
		})

	case "/models":
		c.request(websocket.Frame{Type: websocket.FrameModels}, isType(websocket.FrameModels), func(f websocket.Frame) {
			for _, m := range f.Models {
				marker := "  "
				if m == f.Model {
					marker = "* "
				}
				fmt.Println(marker + m)
			}
		})

	case "/history":
		c.request(websocket.Frame{Type: websocket.FrameHistory}, isType(websocket.FrameHistory), func(f websocket.Frame) {
			if len(f.Turns) == 0 {
				fmt.Println("No messages yet.")
			}
			for _, t := range f.Turns {
				fmt.Printf("%s: %s\n", t.Role, t.Content)
			}
		})

	default:
		fmt.Println("unknown command:", fields[0])
	}
	return true
}

func (c *chatClient) request(f websocket.Frame, match func(websocket.Frame) bool, show func(websocket.Frame)) {
	if err := c.conn.WriteJSON(f); err != nil {
		fmt.Println(warningStyle.Render("error: " + err.Error()))
		return
	}
	reply, err := c.await(match)
	if err != nil {
		fmt.Println(warningStyle.Render("error: " + err.Error()))
		return
	}
	show(reply)
}

func (c *chatClient) render(content string) string {
	if c.renderer == nil {
		return content
	}
	rendered, err := c.renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
