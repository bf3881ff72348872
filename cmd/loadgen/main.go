// Load generator for exercising the Tern evaluation endpoint.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -n 5000 -workers 10
//
// This tool:
//   1. Builds randomized carts from the demo catalog
//   2. Sends each cart to POST /evaluate
//   3. Tracks which promotion rules fired and how much discount they granted
//   4. Reports latency and throughput statistics
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// EvaluateRequest is the Tern API request format
type EvaluateRequest struct {
	Line           LineItem      `json:"line"`
	Customer       *CustomerInfo `json:"customer,omitempty"`
	OrderReference string        `json:"orderReference,omitempty"`
}

type LineItem struct {
	ProductID  int64   `json:"productId"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	CategoryID *int64  `json:"categoryId,omitempty"`
}

type CustomerInfo struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	LoyaltyTier string `json:"loyaltyTier"`
	OrdersCount int    `json:"ordersCount"`
	City        string `json:"city"`
}

// EvaluateResponse is the Tern API response format
type EvaluateResponse struct {
	Applied []struct {
		RuleID   int64   `json:"ruleId"`
		RuleName string  `json:"ruleName"`
		Discount float64 `json:"discount"`
	} `json:"applied"`
	TotalDiscount     float64 `json:"totalDiscount"`
	FinalLineTotal    float64 `json:"finalLineTotal"`
	OriginalLineTotal float64 `json:"originalLineTotal"`
}

// product mirrors a demo catalog entry so generated carts hit real rules.
type product struct {
	ID         int64
	UnitPrice  float64
	CategoryID int64
}

var demoProducts = []product{
	{ID: 123, UnitPrice: 100.00, CategoryID: 10},
	{ID: 456, UnitPrice: 80.00, CategoryID: 20},
	{ID: 789, UnitPrice: 120.00, CategoryID: 10},
	{ID: 555, UnitPrice: 60.00, CategoryID: 20},
	{ID: 888, UnitPrice: 50.00, CategoryID: 99},
}

var demoCustomers = []CustomerInfo{
	{ID: 1, Email: "alice@apple.com", Type: "restaurants", LoyaltyTier: "silver", OrdersCount: 3, City: "Riyadh"},
	{ID: 2, Email: "bob@techcorp.io", Type: "retail", LoyaltyTier: "gold", OrdersCount: 15, City: "Jeddah"},
	{ID: 3, Email: "carol@diner.sa", Type: "restaurants", LoyaltyTier: "none", OrdersCount: 0, City: "Jeddah"},
	{ID: 4, Email: "dave@example.com", Type: "retail", LoyaltyTier: "gold", OrdersCount: 7, City: "Tabuk"},
}

// Metrics tracks load test results
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	TotalDiscount  uint64 // cents, for atomic adds
	TotalOriginal  uint64 // cents

	mu        sync.Mutex
	latencies []time.Duration
	ruleHits  map[int64]int64
	ruleNames map[int64]string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Tern base URL")
	count := flag.Int("n", 5000, "Number of carts to evaluate")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	anonymous := flag.Float64("anonymous", 0.2, "Fraction of carts sent without a customer (0.0-1.0)")
	seed := flag.Int64("seed", 0, "Random seed (0 = time-based)")
	verbose := flag.Bool("verbose", false, "Print each evaluation result")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           TERN LOADGEN - Cart Promotion Evaluation            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nTern URL:   %s\n", *baseURL)
	fmt.Printf("Carts:      %d\n", *count)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Anonymous:  %.2f\n", *anonymous)
	fmt.Printf("Seed:       %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Tern not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Tern is running with the demo catalog:")
		fmt.Println("  TERN_SEED_DEMO=true go run cmd/tern/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Tern is healthy")

	fmt.Printf("\nRunning load test with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runLoad(*baseURL, *count, *workers, *anonymous, *seed, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runLoad(baseURL string, count, numWorkers int, anonymous float64, seed int64, verbose bool) *Metrics {
	metrics := &Metrics{
		ruleHits:  make(map[int64]int64),
		ruleNames: make(map[int64]string),
	}

	work := make(chan EvaluateRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for req := range work {
				start := time.Now()
				result, err := evaluateCart(client, baseURL, req)
				elapsed := time.Since(start)

				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: product %d -> %v\n", req.Line.ProductID, err)
					}
					continue
				}

				atomic.AddUint64(&metrics.TotalDiscount, uint64(result.TotalDiscount*100))
				atomic.AddUint64(&metrics.TotalOriginal, uint64(result.OriginalLineTotal*100))

				metrics.mu.Lock()
				metrics.latencies = append(metrics.latencies, elapsed)
				for _, applied := range result.Applied {
					metrics.ruleHits[applied.RuleID]++
					metrics.ruleNames[applied.RuleID] = applied.RuleName
				}
				metrics.mu.Unlock()

				if verbose {
					customer := "anonymous"
					if req.Customer != nil {
						customer = req.Customer.Email
					}
					fmt.Printf("✓ product %3d x%2d | %-20s | rules: %d | discount: $%8.2f | total: $%9.2f\n",
						req.Line.ProductID,
						req.Line.Quantity,
						customer,
						len(result.Applied),
						result.TotalDiscount,
						result.FinalLineTotal,
					)
				}
			}
		}()
	}

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < count; i++ {
		work <- randomCart(rng, anonymous, i)
	}
	close(work)

	wg.Wait()

	return metrics
}

func randomCart(rng *rand.Rand, anonymous float64, seq int) EvaluateRequest {
	p := demoProducts[rng.Intn(len(demoProducts))]
	catID := p.CategoryID

	req := EvaluateRequest{
		Line: LineItem{
			ProductID:  p.ID,
			Quantity:   1 + rng.Intn(15),
			UnitPrice:  p.UnitPrice,
			CategoryID: &catID,
		},
		OrderReference: fmt.Sprintf("LOAD_%06d", seq),
	}
	if rng.Float64() >= anonymous {
		c := demoCustomers[rng.Intn(len(demoCustomers))]
		req.Customer = &c
	}
	return req
}

func evaluateCart(client *http.Client, baseURL string, req EvaluateRequest) (*EvaluateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       LOADGEN RESULTS                         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 EVALUATION STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Original Total:   $%.2f\n", float64(m.TotalOriginal)/100)
	fmt.Printf("   Discount Granted: $%.2f\n", float64(m.TotalDiscount)/100)
	if m.TotalOriginal > 0 {
		fmt.Printf("   Effective Rate:   %.2f%%\n", 100*float64(m.TotalDiscount)/float64(m.TotalOriginal))
	}

	fmt.Printf("\n🏷️  RULE HITS\n")
	ids := make([]int64, 0, len(m.ruleHits))
	for id := range m.ruleHits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.ruleHits[ids[i]] > m.ruleHits[ids[j]] })
	for _, id := range ids {
		fmt.Printf("   %6d  %-35s %8d\n", id, m.ruleNames[id], m.ruleHits[id])
	}
	if len(ids) == 0 {
		fmt.Println("   (no rules fired - is the demo catalog seeded?)")
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(m.latencies) > 0 {
		sort.Slice(m.latencies, func(i, j int) bool { return m.latencies[i] < m.latencies[j] })
		var sum time.Duration
		for _, l := range m.latencies {
			sum += l
		}
		pct := func(p float64) time.Duration {
			idx := int(p * float64(len(m.latencies)-1))
			return m.latencies[idx]
		}
		fmt.Printf("   Avg Latency:      %v\n", (sum / time.Duration(len(m.latencies))).Round(time.Microsecond))
		fmt.Printf("   p50 Latency:      %v\n", pct(0.50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", pct(0.95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", pct(0.99).Round(time.Microsecond))
		fmt.Printf("   Throughput:       %.2f carts/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Println()
}
