package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type seedPromotion struct {
	Code           string
	Name           string
	Kind           string
	DiscountType   sql.NullString
	Value          sql.NullInt64
	MinOrder       sql.NullInt64
	BuyQuantity    sql.NullInt32
	FreeQuantity   sql.NullInt32
	IsAccumulative sql.NullBool
	MaxDiscount    sql.NullInt64
	Days           int
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedPromotions(db, time.Now())
	log.Println("Seeding completed successfully!")
}

func seedPromotions(db *sql.DB, now time.Time) {
	promotions := []seedPromotion{
		{
			Code: "WELCOME10", Name: "Giảm 10% đơn đầu", Kind: "regular",
			DiscountType: text("percent"), Value: money(10), MaxDiscount: money(30000),
		},
		{
			Code: "HAPPYHOUR", Name: "Giảm 20.000đ cho đơn từ 100.000đ", Kind: "regular",
			DiscountType: text("amount"), Value: money(20000), MinOrder: money(100000), Days: 30,
		},
		{
			Code: "MUA2TANG1", Name: "Mua 2 tặng 1", Kind: "buy_x_get_y",
			BuyQuantity: qty(2), FreeQuantity: qty(1), IsAccumulative: sql.NullBool{Bool: true, Valid: true}, Days: 14,
		},
		{
			Code: "MUA3TANG1", Name: "Mua 3 tặng 1 (một lần)", Kind: "buy_x_get_y",
			BuyQuantity: qty(3), FreeQuantity: qty(1), IsAccumulative: sql.NullBool{Bool: false, Valid: true},
		},
	}

	log.Println("Seeding Promotions...")
	today := now.Format("2006-01-02")
	for _, p := range promotions {
		var end sql.NullString
		if p.Days > 0 {
			end = text(now.AddDate(0, 0, p.Days).Format("2006-01-02"))
		}
		_, err := db.Exec(`
			INSERT INTO promotions (
				id, code, name, kind, discount_type, value, min_order, buy_quantity, free_quantity,
				is_accumulative, max_discount, start_date, end_date, active
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE)
			ON CONFLICT (code) DO NOTHING;
		`, uuid.New(), p.Code, p.Name, p.Kind, p.DiscountType, p.Value, p.MinOrder, p.BuyQuantity,
			p.FreeQuantity, p.IsAccumulative, p.MaxDiscount, today, end)
		if err != nil {
			log.Printf("Failed to seed promotion %s: %v", p.Code, err)
		}
	}
}

func text(v string) sql.NullString { return sql.NullString{String: v, Valid: true} }
func money(v int64) sql.NullInt64  { return sql.NullInt64{Int64: v, Valid: true} }
func qty(v int32) sql.NullInt32    { return sql.NullInt32{Int32: v, Valid: true} }
