package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type User struct {
	ID    string
	Email string
}

type Transaction struct {
	ID            string
	UserID        string
	Description   string
	Type          string
	Status        string
	AmountInCents int64
}

func main() {
	email := flag.String("email", "", "email of the user")
	limit := flag.Int("limit", 20, "max rows to print")
	flag.Parse()
	if *email == "" {
		log.Fatal("--email is required")
	}
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	var u User
	if err := db.Where("email = ?", strings.ToLower(*email)).First(&u).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	var txs []Transaction
	if err := db.Where("user_id = ?", u.ID).Order("date desc").Limit(*limit).Find(&txs).Error; err != nil {
		log.Fatalf("query failed: %v", err)
	}
	for _, tx := range txs {
		fmt.Printf("%s  %-12s %-10s %8d  %s\n", tx.ID, tx.Type, tx.Status, tx.AmountInCents, tx.Description)
	}
	fmt.Printf("%d transaction(s)\n", len(txs))
}
