// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/askvec/services/query"
	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// getBaseURL returns the server address from the environment.
func getBaseURL() string {
	if url := os.Getenv("ASKVEC_BASE_URL"); url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return "http://localhost:8080"
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	resp, err := sendAskRequest(question, collectionFlag, nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	printAnswer(resp)
}

func runChatCommand(_ *cobra.Command, _ []string) {
	fmt.Println("AskVec chat. Follow-up questions resolve pronouns (\"how many do they have?\").")
	fmt.Println("Type 'exit' or press Ctrl-D to quit.")
	fmt.Println("---")

	var conv *datatypes.ConversationContext
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return
		}

		done := make(chan bool)
		go showSpinner("Thinking", done)

		resp, err := sendAskRequest(question, collectionFlag, conv)
		done <- true
		fmt.Print("\r\033[K")

		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		printAnswer(resp)
		conv = &resp.Context
	}
}

func runHealthCommand(_ *cobra.Command, _ []string) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(getBaseURL() + "/v1/health")
	if err != nil {
		log.Fatalf("Server unreachable: %v", err)
	}
	defer resp.Body.Close()

	var health query.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		log.Fatalf("Failed to parse health response: %v", err)
	}

	fmt.Printf("Server:     %s\n", health.Status)
	fmt.Printf("Repository: %s\n", health.Repository)
	if health.Repository != "ok" {
		os.Exit(1)
	}
}

// sendAskRequest posts one question, carrying the conversation context.
func sendAskRequest(question, collection string, conv *datatypes.ConversationContext) (*datatypes.NaturalQueryResponse, error) {
	req := datatypes.NaturalQueryRequest{
		Question:   question,
		Collection: collection,
		Context:    conv,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	httpResp, err := client.Post(getBaseURL()+"/v1/ask", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read server response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned an error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
	}

	var resp datatypes.NaturalQueryResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse server response: %w", err)
	}
	return &resp, nil
}

// printAnswer renders one answer with its supporting hits.
func printAnswer(resp *datatypes.NaturalQueryResponse) {
	fmt.Printf("\n%s\n", resp.Answer)
	if len(resp.Data) > 0 {
		fmt.Println("\nResults:")
		for i, hit := range resp.Data {
			name := hit.ID
			for _, key := range []string{"name", "title", "prompt"} {
				if v, ok := hit.Payload[key].(string); ok && v != "" {
					name = v
					break
				}
			}
			fmt.Printf("%d. %s (Score: %.4f)\n", i+1, name, hit.Score)
		}
	}
	fmt.Printf("\n[%s, %dms]\n", resp.QueryType, resp.ExecutionTimeMs)
}

// showSpinner displays a minimal progress animation until done is signaled.
func showSpinner(msg string, done chan bool) {
	chars := []string{"▖", "▘", "▝", "▗"}
	i := 0

	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")

	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s  %s... \033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(100 * time.Millisecond)
		}
	}
}
