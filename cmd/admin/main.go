package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"swipedine/backend/internal/config"
	"swipedine/backend/internal/storage"
)

// Maintenance CLI: vote retention purges and session snapshot inspection.

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands:")
		fmt.Println("  purge-votes <days>     delete vote rows older than <days>")
		fmt.Println("  inspect <session_id>   print the shared session snapshot")
		fmt.Println("  votes <session_id> <round>   list votes for a round")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "purge-votes":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin purge-votes <days>")
			os.Exit(1)
		}
		days, err := strconv.Atoi(os.Args[2])
		if err != nil || days < 1 {
			fmt.Println("Invalid retention window. Provide a positive integer of days.")
			os.Exit(1)
		}
		cutoff := time.Now().AddDate(0, 0, -days)
		purged, err := storageSvc.PurgeVotesBefore(cutoff)
		if err != nil {
			log.Fatalf("Error purging votes: %v", err)
		}
		fmt.Printf("Purged %d vote rows older than %s.\n", purged, cutoff.Format(time.RFC3339))

	case "inspect":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin inspect <session_id>")
			os.Exit(1)
		}
		snap, err := storageSvc.GetSnapshot(os.Args[2])
		if err != nil {
			log.Fatalf("Error reading snapshot: %v", err)
		}
		if snap == nil {
			fmt.Println("No snapshot found (session unknown or expired).")
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(out))

	case "votes":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin votes <session_id> <round>")
			os.Exit(1)
		}
		round, err := strconv.Atoi(os.Args[3])
		if err != nil {
			fmt.Println("Invalid round. Provide an integer.")
			os.Exit(1)
		}
		votes, err := storageSvc.ListVotesForRound(os.Args[2], round)
		if err != nil {
			log.Fatalf("Error listing votes: %v", err)
		}
		for _, v := range votes {
			fmt.Printf("%s  user=%s item=%s value=%s at=%s\n",
				v.SessionID, v.UserID, v.ItemID, v.VoteValue, v.VotedAt.Format(time.RFC3339))
		}
		fmt.Printf("%d votes.\n", len(votes))

	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
