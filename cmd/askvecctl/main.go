// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command askvecctl is the AskVec command-line client.
//
// Usage:
//
//	askvecctl ask "show me Chris Dyer's work" --collection gallery
//	askvecctl chat --collection gallery
//	askvecctl health
//
// The server address comes from ASKVEC_BASE_URL (default
// http://localhost:8080).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// collectionFlag holds the --collection value shared by ask and chat.
var collectionFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "askvecctl",
		Short: "Ask natural-language questions over vector collections",
	}

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	askCmd.Flags().StringVarP(&collectionFlag, "collection", "c", "", "Collection to search")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation with follow-up questions",
		Run:   runChatCommand,
	}
	chatCmd.Flags().StringVarP(&collectionFlag, "collection", "c", "", "Collection to search")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server and vector store health",
		Run:   runHealthCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
