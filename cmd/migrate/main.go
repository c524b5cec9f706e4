package main

import (
	"log"

	"medshift-chat/internal/config"
	"medshift-chat/internal/domain/chat"
	"medshift-chat/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	if err := db.AutoMigrate(
		&chat.Conversation{},
		&chat.Participant{},
		&chat.Message{},
		&chat.Attachment{},
		&chat.ReadPosition{},
	); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	log.Println("migrations applied")
}
