package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-order/internal/adapter/storage"
	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	memberCount   = 10
	queueSize     = 100
)

func main() {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	store, err := openStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate")
	}

	// Seed catalog
	runID := uuid.NewString()[:8]
	productID, err := store.CreateProduct(ctx, "stress-item-"+runID, decimal.RequireFromString("10.00"), initialStock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create product")
	}
	emails := make([]string, memberCount)
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d-%s@stress.test", i, runID)
		if _, err := store.CreateMember(ctx, emails[i], fmt.Sprintf("user-%d", i)); err != nil {
			log.Fatal().Err(err).Msg("failed to create member")
		}
	}

	orderService := service.NewOrderService(store, nil, queueSize, log)
	defer orderService.Close()

	// Drain the event queue in background
	go func() {
		for range orderService.GetEventQueue() {
		}
	}()

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32
	var orderIDs sync.Map

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			orderID, err := orderService.Place(ctx, service.PlaceOrderRequest{
				ProductID: productID,
				Quantity:  1,
				Email:     emails[n%memberCount],
				RequestID: uuid.NewString(),
			})
			switch {
			case err == nil:
				successCount.Add(1)
				orderIDs.Store(orderID, true)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
				log.Error().Err(err).Msg("unexpected placement error")
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success == int32(initialStock) && soldOut == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		ok = false
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	ok = checkStock(ctx, store, productID, 0) && ok

	// Cancel every order concurrently, each one twice
	orderIDs.Range(func(key, _ any) bool {
		for range 2 {
			wg.Add(1)
			go func(orderID int64) {
				defer wg.Done()
				if err := orderService.Cancel(ctx, orderID); err != nil {
					log.Error().Err(err).Int64("order_id", orderID).Msg("cancel failed")
				}
			}(key.(int64))
		}
		return true
	})
	wg.Wait()

	ok = checkStock(ctx, store, productID, initialStock) && ok

	if !ok {
		os.Exit(1)
	}
}

func checkStock(ctx context.Context, store *storage.SQLStore, productID int64, want int) bool {
	product, err := store.Products().FindByID(ctx, productID)
	if err != nil {
		fmt.Printf("FAIL: could not read stock: %v\n", err)
		return false
	}

	fmt.Printf("Final Stock: %d\n", product.Stock)
	if product.Stock != want {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", want, product.Stock)
		return false
	}
	fmt.Printf("PASS: Stock is %d\n", want)
	return true
}

// openStore uses MySQL when MYSQL_DSN is set and an in-memory SQLite store
// otherwise.
func openStore(ctx context.Context) (*storage.SQLStore, error) {
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		return storage.OpenMySQL(ctx, dsn, storage.PoolOptions{
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		})
	}
	return storage.OpenSQLite(ctx, ":memory:")
}
