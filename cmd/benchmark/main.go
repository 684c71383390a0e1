package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL    string
	accountsFile string
	concurrency  int
	duration     time.Duration
	workload     string
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Created
	fail409       uint64 // Contention / duplicate id
	fail422       uint64 // Insufficient funds
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&accountsFile, "accounts", "accounts.txt", "File with one seeded account id per line")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()

	accounts, err := loadAccounts(accountsFile)
	if err != nil {
		log.Fatalf("Unable to load account ids: %v", err)
	}
	if len(accounts) < 2 {
		log.Fatalf("Need at least 2 seeded accounts, got %d", len(accounts))
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Accounts: %d",
		workload, concurrency, duration, len(accounts))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, accounts)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func loadAccounts(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, scanner.Err()
}

func worker(wg *sync.WaitGroup, start time.Time, accounts []string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		debit, credit := pickAccounts(accounts)

		payload := map[string]interface{}{
			"debitAccountId":  debit,
			"creditAccountId": credit,
			"amount":          "1.00",
			"description":     "benchmark transfer",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		case 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickAccounts(accounts []string) (string, string) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic bounces between the first two accounts
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return accounts[0], accounts[1]
			}
			return accounts[1], accounts[0]
		}
	}

	// Uniform Random
	a := rand.Intn(len(accounts))
	b := rand.Intn(len(accounts))
	for a == b {
		b = rand.Intn(len(accounts))
	}
	return accounts[a], accounts[b]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	abortRate := float64(f409) / float64(total) * 100

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_created":    s201,
		"aborts_contention":  f409,
		"insufficient_funds": f422,
		"abort_rate_pct":     abortRate,
		"errors":             fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
