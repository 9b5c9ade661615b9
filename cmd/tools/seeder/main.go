package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/billing-xendit/internal/billing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if err := billing.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	clients := []struct {
		Email string
		Items []billing.NewItem
	}{
		{"budi@example.com", []billing.NewItem{
			{Title: "Hosting Basic (1 bulan)", Price: decimal.RequireFromString("75000"), Quantity: 1},
			{Title: "Domain .id", Price: decimal.RequireFromString("50000"), Quantity: 1},
		}},
		{"siti@example.com", []billing.NewItem{
			{Title: "VPS 2 vCPU", Price: decimal.RequireFromString("250000"), Quantity: 3},
		}},
	}

	base := strings.TrimRight(envOrDefault("CALLBACK_BASE_URL", "http://localhost:8080"), "/")
	for i, c := range clients {
		clientID, err := billing.CreateClient(ctx, pool, c.Email, "IDR")
		if err != nil {
			log.Fatalf("Failed to seed client %s: %v", c.Email, err)
		}
		invoiceID, err := billing.CreateInvoice(ctx, pool, billing.NewInvoice{
			ClientID:   clientID,
			Hash:       strings.ReplaceAll(uuid.NewString(), "-", ""),
			Serie:      "INV",
			Number:     fmt.Sprintf("%04d", i+1),
			Currency:   "IDR",
			TaxRate:    decimal.RequireFromString("11"),
			BuyerEmail: c.Email,
			Items:      c.Items,
		})
		if err != nil {
			log.Fatalf("Failed to seed invoice for %s: %v", c.Email, err)
		}
		fmt.Printf("client=%s invoice=%s pay=%s/api/v1/invoices/%s/pay\n", clientID, invoiceID, base, invoiceID)
	}

	log.Println("Seeding completed successfully!")
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
