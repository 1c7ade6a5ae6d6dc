// Command test drives a running server through one exchange: it creates a
// session, sends a message (or an audio clip with -audio) and prints the
// reply.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Type      string `json:"type"`
	Model     string `json:"model"`
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sendResponse struct {
	UserTurn      turn   `json:"user_turn"`
	AssistantTurn turn   `json:"assistant_turn"`
	Outcome       string `json:"outcome"`
	Transcript    string `json:"transcript,omitempty"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the chat server")
	message := flag.String("message", "Explain gravity", "message to send")
	audioPath := flag.String("audio", "", "LINEAR16 16kHz clip to send instead of -message")
	flag.Parse()

	client := &http.Client{Timeout: 90 * time.Second}

	fmt.Println("🚀 Starting smoke test...")

	session, err := createSession(client, *baseURL)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	fmt.Printf("✅ Session %s on model %s\n", session.SessionID, session.Model)

	var reply *sendResponse
	if *audioPath != "" {
		reply, err = sendAudio(client, *baseURL, session.Token, *audioPath)
	} else {
		reply, err = sendMessage(client, *baseURL, session.Token, *message)
	}
	if err != nil {
		log.Fatalf("Exchange failed: %v", err)
	}

	if reply.Transcript != "" {
		fmt.Printf("🎙️  Transcript: %s\n", reply.Transcript)
	}
	fmt.Printf("🙋 %s\n", reply.UserTurn.Content)
	fmt.Printf("🤖 %s\n", reply.AssistantTurn.Content)
	fmt.Printf("📊 Outcome: %s\n", reply.Outcome)

	if err := endSession(client, *baseURL, session.Token); err != nil {
		log.Fatalf("Failed to end session: %v", err)
	}
	fmt.Println("✅ Smoke test completed successfully!")
}

func createSession(client *http.Client, baseURL string) (*sessionResponse, error) {
	resp, err := client.Post(baseURL+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out sessionResponse
	if err := decode(resp, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sendMessage(client *http.Client, baseURL, token, text string) (*sendResponse, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/session/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return exchange(client, req)
}

func sendAudio(client *http.Client, baseURL, token, path string) (*sendResponse, error) {
	audioData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	fmt.Printf("📁 Loaded audio file: %s (%d bytes)\n", path, len(audioData))

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/session/audio", bytes.NewReader(audioData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "audio/wav")

	return exchange(client, req)
}

func exchange(client *http.Client, req *http.Request) (*sendResponse, error) {
	startTime := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	fmt.Printf("⏱️  Request completed in %v\n", time.Since(startTime))

	var out sendResponse
	if err := decode(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func endSession(client *http.Client, baseURL, token string) error {
	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/v1/session", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func decode(resp *http.Response, want int, v any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, v)
}
