package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Canned transcript lines cycled through so repeated windows produce new text.
var transcriptLines = []string{
	"Halo selamat pagi, dengan Ibu Sari?",
	"Anak saya namanya Budi, umurnya 10 tahun",
	"Dia suka main Minecraft sama Roblox",
	"Kami ingin dia belajar logika dan coding",
}

var lineIndex int

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	model := r.FormValue("model")
	language := r.FormValue("language")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("    Model: %s", model)
	log.Printf("    Language: %s", language)
	log.Printf("    Filename: %s", header.Filename)
	log.Printf("    Audio Size: %d bytes", len(audioData))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := transcriptionResponse{
		Text:     transcriptLines[lineIndex%len(transcriptLines)],
		Language: language,
		Duration: 10.0,
	}
	lineIndex++

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
}

func chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	log.Printf("🧠 ANALYSIS REQUEST RECEIVED: %d bytes", len(body))

	// Always answers "not completed" so the engine keeps checking. Good
	// enough to exercise transcription, buffering, and snapshot broadcast
	// without a real model behind it.
	var response chatResponse
	response.Choices = make([]struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}, 1)
	response.Choices[0].Message.Role = "assistant"
	response.Choices[0].Message.Content = `{"completed": false, "confidence": 0.0, "evidence": "", "reasoning": "stub server"}`

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func main() {
	http.HandleFunc("/v1/audio/transcriptions", transcribeHandler)
	http.HandleFunc("/v1/chat/completions", chatHandler)

	port := ":9000"
	log.Printf("🚀 Test Upstream Server starting on port %s", port)
	log.Printf("📡 Transcription: http://localhost%s/v1/audio/transcriptions", port)
	log.Printf("📡 Chat: http://localhost%s/v1/chat/completions", port)
	log.Println("💡 Point transcription.endpoint and analyzer.endpoint at these URLs")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
