package db

import (
	"log"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gdb.AutoMigrate(&chat.Conversation{}, &chat.Message{}, &chat.Lead{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
