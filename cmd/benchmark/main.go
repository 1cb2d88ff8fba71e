// Benchmark tool for load-testing Harrier with synthetic ownership graphs.
//
// Usage:
//   go run cmd/benchmark/main.go -companies 500 -url http://localhost:8080
//
// This tool:
//   1. Generates synthetic ownership structures (some seeded with defects:
//      incomplete ownership, cycles)
//   2. Loads them into Harrier via the parties/edges API
//   3. Resolves and validates every root concurrently
//   4. Compares flagged structures against the seeded defect labels and
//      reports detection counts, latency and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Structure is one generated ownership graph rooted at a company.
type Structure struct {
	RootID string

	// Layers is the depth of the holding chain above the root.
	Layers int

	// HasCycle marks a structure seeded with an ownership loop.
	HasCycle bool

	// Incomplete marks a structure whose direct ownership sums below 100%.
	Incomplete bool
}

// PartyRequest matches the Harrier API request format.
type PartyRequest struct {
	ID         string `json:"id,omitempty"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Country    string `json:"country,omitempty"`
	Activities string `json:"activities,omitempty"`
}

// EdgeRequest matches the Harrier API request format.
type EdgeRequest struct {
	Kind       string   `json:"kind"`
	OwnerID    string   `json:"ownerId"`
	OwnedID    string   `json:"ownedId"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// ResolveResponse is the Harrier API response format.
type ResolveResponse struct {
	ResolutionID string `json:"resolutionId"`
	Result       struct {
		UBOs     []json.RawMessage `json:"ubos"`
		Cycles   [][]string        `json:"cycles"`
		Warnings []string          `json:"warnings"`
	} `json:"result"`
	Cached bool `json:"cached"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalResolved int64
	TotalErrors   int64
	TotalUBOs     int64

	CleanSeeded    int64 // Structures without seeded defects
	DefectsSeeded  int64 // Structures with a seeded cycle or incomplete sum
	DefectsFlagged int64 // Seeded defects that produced a warning
	FalseFlags     int64 // Clean structures that produced a warning

	ProcessingTimeMs int64
}

var countries = []string{"AE", "GB", "DE", "SG", "KY", "VG", "LU", "CH"}

var activities = []string{
	"general trading", "software consultancy", "real estate brokerage",
	"import and export", "precious metal trading", "holding company",
}

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	companies := flag.Int("companies", 200, "Number of root structures to generate")
	layers := flag.Int("layers", 3, "Maximum holding layers above each root")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	defectRate := flag.Float64("defects", 0.2, "Fraction of structures seeded with defects (0.0-1.0)")
	seed := flag.Int64("seed", 42, "Random seed for graph generation")
	verbose := flag.Bool("verbose", false, "Print each resolution result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║       HARRIER BENCHMARK - Synthetic Ownership Graphs          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Structures:  %d\n", *companies)
	fmt.Printf("Max Layers:  %d\n", *layers)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Defect Rate: %.2f\n", *defectRate)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Generate and load structures
	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("\nGenerating and loading %d structures...\n", *companies)
	loadStart := time.Now()
	structures, err := loadStructures(client, *baseURL, *tenantID, *companies, *layers, *defectRate, rng)
	if err != nil {
		fmt.Printf("ERROR: Failed to load structures: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d structures in %v\n", len(structures), time.Since(loadStart).Round(time.Millisecond))

	defectCount := 0
	for _, s := range structures {
		if s.HasCycle || s.Incomplete {
			defectCount++
		}
	}
	fmt.Printf("  - Clean:    %d\n", len(structures)-defectCount)
	fmt.Printf("  - Seeded:   %d (cycles or incomplete ownership)\n", defectCount)

	// Run benchmark
	fmt.Printf("\nResolving with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(structures, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
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

// loadStructures generates companies with layered holding chains and
// posts them to the API. Each structure is a chain of holding companies
// topped by two individuals splitting the top layer.
func loadStructures(client *http.Client, baseURL, tenantID string, count, maxLayers int, defectRate float64, rng *rand.Rand) ([]Structure, error) {
	structures := make([]Structure, 0, count)

	for i := 0; i < count; i++ {
		layers := 1 + rng.Intn(maxLayers)
		s := Structure{
			RootID: fmt.Sprintf("bench-root-%04d", i),
			Layers: layers,
		}
		if rng.Float64() < defectRate {
			if rng.Intn(2) == 0 {
				s.HasCycle = true
			} else {
				s.Incomplete = true
			}
		}

		if err := postStructure(client, baseURL, tenantID, &s, rng); err != nil {
			return nil, fmt.Errorf("structure %s: %w", s.RootID, err)
		}
		structures = append(structures, s)
	}

	return structures, nil
}

func postStructure(client *http.Client, baseURL, tenantID string, s *Structure, rng *rand.Rand) error {
	country := countries[rng.Intn(len(countries))]
	activity := activities[rng.Intn(len(activities))]

	// Root company
	if err := postJSON(client, baseURL+"/parties", tenantID, PartyRequest{
		ID: s.RootID, Kind: "company", Name: s.RootID + " LLC",
		Country: country, Activities: activity,
	}); err != nil {
		return err
	}

	// Holding chain: each layer fully owns the one below
	prev := s.RootID
	pct := 100.0
	if s.Incomplete {
		pct = 40.0 + 10.0*float64(rng.Intn(5)) // 40-80%
	}
	for l := 0; l < s.Layers; l++ {
		holdID := fmt.Sprintf("%s-hold-%d", s.RootID, l)
		if err := postJSON(client, baseURL+"/parties", tenantID, PartyRequest{
			ID: holdID, Kind: "company", Name: holdID + " Holdings",
			Country: countries[rng.Intn(len(countries))], Activities: "holding company",
		}); err != nil {
			return err
		}
		if err := postJSON(client, baseURL+"/edges", tenantID, EdgeRequest{
			Kind: "ownership", OwnerID: holdID, OwnedID: prev, Percentage: &pct,
		}); err != nil {
			return err
		}
		prev = holdID
		pct = 100.0
	}

	if s.HasCycle {
		// Close the chain back on itself; individuals above still resolve.
		cyclePct := 10.0
		if err := postJSON(client, baseURL+"/edges", tenantID, EdgeRequest{
			Kind: "ownership", OwnerID: s.RootID, OwnedID: prev, Percentage: &cyclePct,
		}); err != nil {
			return err
		}
	}

	// Two individuals split the top holding company
	for j, split := range []float64{60.0, 40.0} {
		personID := fmt.Sprintf("%s-person-%d", s.RootID, j)
		if err := postJSON(client, baseURL+"/parties", tenantID, PartyRequest{
			ID: personID, Kind: "individual", Name: personID,
			Country: countries[rng.Intn(len(countries))],
		}); err != nil {
			return err
		}
		p := split
		if err := postJSON(client, baseURL+"/edges", tenantID, EdgeRequest{
			Kind: "ownership", OwnerID: personID, OwnedID: prev, Percentage: &p,
		}); err != nil {
			return err
		}
	}

	return nil
}

func runBenchmark(structures []Structure, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan Structure, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for s := range work {
				start := time.Now()
				result, err := resolveStructure(client, baseURL, tenantID, s.RootID)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalResolved, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", s.RootID, err)
					}
					continue
				}

				atomic.AddInt64(&metrics.TotalUBOs, int64(len(result.Result.UBOs)))

				seeded := s.HasCycle || s.Incomplete
				flagged := len(result.Result.Warnings) > 0

				if seeded {
					atomic.AddInt64(&metrics.DefectsSeeded, 1)
					if flagged {
						atomic.AddInt64(&metrics.DefectsFlagged, 1)
					}
				} else {
					atomic.AddInt64(&metrics.CleanSeeded, 1)
					if flagged {
						atomic.AddInt64(&metrics.FalseFlags, 1)
					}
				}

				if verbose {
					status := "✓"
					if seeded != flagged {
						status = "✗"
					}
					fmt.Printf("%s %-16s | Layers: %d | UBOs: %d | Cycles: %d | Warnings: %v\n",
						status,
						s.RootID,
						s.Layers,
						len(result.Result.UBOs),
						len(result.Result.Cycles),
						result.Result.Warnings,
					)
				}
			}
		}()
	}

	// Send work
	for _, s := range structures {
		work <- s
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func postJSON(client *http.Client, url, tenantID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func resolveStructure(client *http.Client, baseURL, tenantID, rootID string) (*ResolveResponse, error) {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/parties/"+rootID+"/resolve", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 RESOLUTION STATISTICS\n")
	fmt.Printf("   Total Resolved:   %d\n", m.TotalResolved)
	fmt.Printf("   Total UBOs:       %d\n", m.TotalUBOs)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n🔍 DEFECT DETECTION\n")
	fmt.Printf("   Clean Structures: %d\n", m.CleanSeeded)
	fmt.Printf("   Seeded Defects:   %d\n", m.DefectsSeeded)
	if m.DefectsSeeded > 0 {
		detectionRate := float64(m.DefectsFlagged) / float64(m.DefectsSeeded) * 100
		fmt.Printf("   Defects Flagged:  %d / %d (%.2f%%)\n", m.DefectsFlagged, m.DefectsSeeded, detectionRate)
		if m.DefectsFlagged < m.DefectsSeeded {
			fmt.Printf("   Defects Missed:   %d ⚠️\n", m.DefectsSeeded-m.DefectsFlagged)
		}
	}
	if m.CleanSeeded > 0 {
		falseRate := float64(m.FalseFlags) / float64(m.CleanSeeded) * 100
		fmt.Printf("   False Flags:      %d / %d (%.2f%%)\n", m.FalseFlags, m.CleanSeeded, falseRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalResolved > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalResolved)
		rps := float64(m.TotalResolved) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f resolutions/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if m.DefectsSeeded > 0 && m.DefectsFlagged == m.DefectsSeeded {
		fmt.Println("   ✅ All seeded defects were flagged")
	} else if m.DefectsSeeded > 0 {
		fmt.Println("   ⚠️  Some seeded defects were not flagged")
	}
	if m.FalseFlags == 0 {
		fmt.Println("   ✅ No false flags on clean structures")
	} else {
		fmt.Println("   ⚠️  Clean structures produced warnings")
	}

	fmt.Println()
}
