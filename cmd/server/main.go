package main

import (
	"log"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	"github.com/UnuProxy/JYE-MainWeb/internal/config"
	"github.com/UnuProxy/JYE-MainWeb/internal/db"
	"github.com/UnuProxy/JYE-MainWeb/internal/httpapi"
	"github.com/UnuProxy/JYE-MainWeb/internal/store/rabbitmq"
	"github.com/UnuProxy/JYE-MainWeb/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)

	notifier := redisstore.NewNotifier(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer notifier.Close()

	store := chat.NewStore(repo, notifier, cfg.MessageDebounce)

	leads, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer leads.Close()

	r := httpapi.NewRouter(cfg, store, leads)

	log.Printf("server listening on %s", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
