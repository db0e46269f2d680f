package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotgrid/availability-engine/internal/config"
	"github.com/slotgrid/availability-engine/internal/db"
)

// The simulator hammers the engine endpoints with many workers against a
// small set of businesses, so runs on the same business pile up on the
// per-business lock. The "busy" column in the report is that contention.

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	GenerateRatio   float64
	RegenerateRatio float64
	ReadRatio       float64
	BusinessLimit   int
	PostgresDSN     string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Busy      int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status == http.StatusOK:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		// Requests run with force, so a 409 here is a lock miss.
		atomic.AddInt64(&om.Busy, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Generate   OperationMetrics
	Regenerate OperationMetrics
	Cleanup    OperationMetrics
	ListSlots  OperationMetrics
}

type Simulator struct {
	config     SimConfig
	businesses []uuid.UUID
	client     *http.Client
	metrics    Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d generate=%.2f regenerate=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.GenerateRatio, cfg.RegenerateRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	businesses, err := loadBusinesses(ctx, pgPool, cfg.BusinessLimit)
	if err != nil {
		log.Fatalf("load businesses: %v", err)
	}

	log.Printf("loaded %d businesses", len(businesses))

	sim := &Simulator{
		config:     cfg,
		businesses: businesses,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		GenerateRatio:   getFloat("SIM_GENERATE_RATIO", 0.4),
		RegenerateRatio: getFloat("SIM_REGENERATE_RATIO", 0.2),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		BusinessLimit:   getInt("SIM_BUSINESS_LIMIT", 5),
		PostgresDSN:     baseCfg.PostgresDSN,
	}

	total := cfg.GenerateRatio + cfg.RegenerateRatio + cfg.ReadRatio
	if total > 0 {
		cfg.GenerateRatio /= total
		cfg.RegenerateRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadBusinesses(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM businesses ORDER BY created_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no businesses loaded, run the seeder first")
	}
	return result, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.GenerateRatio:
				s.doRun(ctx, rng, "generate", &s.metrics.Generate)
			case r < s.config.GenerateRatio+s.config.RegenerateRatio:
				if rng.Intn(2) == 0 {
					s.doRun(ctx, rng, "regenerate", &s.metrics.Regenerate)
				} else {
					s.doRun(ctx, rng, "cleanup-and-regenerate", &s.metrics.Cleanup)
				}
			default:
				s.doListSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) pick(rng *rand.Rand) uuid.UUID {
	return s.businesses[rng.Intn(len(s.businesses))]
}

func (s *Simulator) doRun(ctx context.Context, rng *rand.Rand, op string, om *OperationMetrics) {
	businessID := s.pick(rng)

	body, _ := json.Marshal(map[string]any{"force": true})

	start := time.Now()

	url := fmt.Sprintf("%s/businesses/%s/slots/%s", s.config.APIBaseURL, businessID, op)
	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}

	om.Record(latency, status, err)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	businessID := s.pick(rng)

	start := time.Now()

	url := fmt.Sprintf("%s/businesses/%s/slots", s.config.APIBaseURL, businessID)
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}

	s.metrics.ListSlots.Record(latency, status, err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Businesses: %d\n", len(s.businesses))
	fmt.Println()

	printOperationReport("Generate", &s.metrics.Generate)
	printOperationReport("Regenerate", &s.metrics.Regenerate)
	printOperationReport("Cleanup and regenerate", &s.metrics.Cleanup)
	printOperationReport("List slots", &s.metrics.ListSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	busy := atomic.LoadInt64(&om.Busy)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if busy > 0 {
		fmt.Printf("  Busy: %d (%.1f%%)\n", busy, float64(busy)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
