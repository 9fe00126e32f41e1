package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/adapter/storage"
	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/service"
)

const (
	initialStock   = 20
	totalTerminals = 50
	sizeStock      = 5
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/pos?parseTime=true"
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)

	// Seed one flat and one sized product
	stock := initialStock
	flat, err := adapter.CreateProduct(ctx, domain.Product{
		Barcode:    "stress-" + uuid.NewString()[:8],
		Name:       "Stress Mug",
		Price:      decimal.NewFromInt(12),
		TotalStock: &stock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}
	sized, err := adapter.CreateProduct(ctx, domain.Product{
		Barcode:  "stress-" + uuid.NewString()[:8],
		Name:     "Stress Tee",
		Price:    decimal.NewFromInt(25),
		Variants: []domain.Variant{{Size: "S", Stock: sizeStock}, {Size: "M", Stock: sizeStock}},
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}
	defer func() {
		for _, id := range []string{flat.ID, sized.ID} {
			db.Exec(`DELETE FROM sales WHERE product_id = ?`, id)
			db.Exec(`DELETE FROM products WHERE id = ?`, id)
		}
	}()

	ledger := service.NewStockLedger(adapter, nil, nil)
	if err := ledger.Refresh(ctx); err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	// Every terminal wants one mug and one tee in size M
	terminals := make([]*service.Terminal, totalTerminals)
	for i := range terminals {
		sequencer := service.NewCheckoutSequencer(adapter, ledger, service.OptimisticReconciler{Ledger: ledger},
			service.WithFailurePolicy(service.RollbackAll))
		terminals[i] = service.NewTerminal(fmt.Sprintf("till-%d", i), service.TerminalDeps{
			Ledger:    ledger,
			Sequencer: sequencer,
		})
		if err := terminals[i].AddLine(flat.ID, 1, ""); err != nil {
			log.Fatalf("add line: %v", err)
		}
		if err := terminals[i].AddLine(sized.ID, 1, "M"); err != nil {
			log.Fatalf("add line: %v", err)
		}
	}

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Check out every terminal at once
	var wg sync.WaitGroup
	start := time.Now()

	for _, term := range terminals {
		wg.Add(1)
		go func(term *service.Terminal) {
			defer wg.Done()

			if _, err := term.Checkout(ctx, domain.PaymentCash); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(term)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	fail := int(failCount.Load())

	var flatStock, sizeM, sizeS, sales int
	db.QueryRowContext(ctx, `SELECT total_stock FROM products WHERE id = ?`, flat.ID).Scan(&flatStock)
	db.QueryRowContext(ctx, `SELECT stock FROM product_variants WHERE product_id = ? AND size = 'M'`, sized.ID).Scan(&sizeM)
	db.QueryRowContext(ctx, `SELECT stock FROM product_variants WHERE product_id = ? AND size = 'S'`, sized.ID).Scan(&sizeS)
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE product_id IN (?, ?)`, flat.ID, sized.ID).Scan(&sales)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Terminals:        %d\n", totalTerminals)
	fmt.Printf("Mug Stock:        %d -> %d\n", initialStock, flatStock)
	fmt.Printf("Tee M Stock:      %d -> %d\n", sizeStock, sizeM)
	fmt.Printf("Completed Carts:  %d\n", success)
	fmt.Printf("Failed Carts:     %d\n", fail)
	fmt.Printf("Sales Rows:       %d\n", sales)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	ok := true
	check := func(cond bool, format string, args ...any) {
		if cond {
			return
		}
		ok = false
		fmt.Printf("FAIL: "+format+"\n", args...)
	}

	check(flatStock >= 0 && sizeM >= 0, "stock went negative (mug %d, tee M %d)", flatStock, sizeM)
	check(success <= sizeStock, "expected at most %d completed carts, got %d", sizeStock, success)
	check(flatStock == initialStock-success, "rolled back carts left mug stock at %d, want %d", flatStock, initialStock-success)
	check(sizeM == sizeStock-success, "tee M stock %d, want %d", sizeM, sizeStock-success)
	check(sizeS == sizeStock, "tee S stock changed to %d", sizeS)
	check(sales == 2*success, "expected %d sales rows, got %d", 2*success, sales)

	if ok {
		fmt.Printf("PASS: %d carts completed, no oversell, every failed cart rolled back\n", success)
	}
}
