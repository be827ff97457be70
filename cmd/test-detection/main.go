package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/detection"
)

func main() {
	fmt.Println("🔍 riskwatch - Keyword Detection Test")
	fmt.Println("=====================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	detector := detection.NewDetector(cfg.RiskKeywords)
	fmt.Printf("\n📋 %d risk phrases loaded\n", len(detector.Phrases()))

	messages := os.Args[1:]
	if len(messages) == 0 {
		fmt.Println("💬 Reading messages from stdin, one per line")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				messages = append(messages, line)
			}
		}
		if err := scanner.Err(); err != nil {
			log.Fatalf("Failed to read stdin: %v", err)
		}
	}

	fmt.Println(strings.Repeat("-", 40))
	atRisk := 0
	for _, message := range messages {
		result := detector.Detect(message)
		if result.IsAtRisk {
			atRisk++
			fmt.Printf("🚨 AT RISK  %q\n", message)
			fmt.Printf("   🔑 Matched: %s\n", strings.Join(result.DetectedKeywords, ", "))
		} else {
			fmt.Printf("✅ OK       %q\n", message)
		}
	}

	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("📊 %d of %d messages flagged\n", atRisk, len(messages))
}
