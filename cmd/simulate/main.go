package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/evv-verification/internal/logger"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	FlowRatio     float64 // full visit: push, clock in, clock out, validate
	ValidateRatio float64
	ReadRatio     float64
	Patients      int
	OffFenceRatio float64 // share of flows that clock in away from the patient
}

// VisitPool tracks visits created during the run so other workers can
// validate and read them concurrently.
type VisitPool struct {
	mu     sync.RWMutex
	visits []string
}

func (vp *VisitPool) Add(id string) {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	vp.visits = append(vp.visits, id)
}

func (vp *VisitPool) Random(f *gofakeit.Faker) (string, bool) {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	if len(vp.visits) == 0 {
		return "", false
	}
	return vp.visits[f.Number(0, len(vp.visits)-1)], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
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
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	PushSchedule OperationMetrics
	ClockIn      OperationMetrics
	ClockOut     OperationMetrics
	Validate     OperationMetrics
	ReadVisit    OperationMetrics
	ReadEvents   OperationMetrics

	Verified   int64
	Unverified int64
}

type Simulator struct {
	config   SimConfig
	pool     *VisitPool
	patients []string
	client   *http.Client
	metrics  Metrics
	log      zerolog.Logger
}

func main() {
	log := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info")).With().Str("service", "simulate").Logger()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("flow", cfg.FlowRatio).
		Float64("validate", cfg.ValidateRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	patients := make([]string, cfg.Patients)
	for i := range patients {
		patients[i] = "sim-patient-" + uuid.NewString()
	}

	sim := &Simulator{
		config:   cfg,
		pool:     &VisitPool{},
		patients: patients,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		FlowRatio:     getFloat("SIM_FLOW_RATIO", 0.4),
		ValidateRatio: getFloat("SIM_VALIDATE_RATIO", 0.3),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		Patients:      getInt("SIM_PATIENTS", 500),
		OffFenceRatio: getFloat("SIM_OFF_FENCE_RATIO", 0.1),
	}

	// Normalize ratios
	total := cfg.FlowRatio + cfg.ValidateRatio + cfg.ReadRatio
	if total > 0 {
		cfg.FlowRatio /= total
		cfg.ValidateRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return errors.New("SIM_PATIENTS must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context) {
	f := gofakeit.New(0)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := f.Float64()
			switch {
			case r < s.config.FlowRatio:
				s.doFlow(ctx, f)
			case r < s.config.FlowRatio+s.config.ValidateRatio:
				if id, ok := s.pool.Random(f); ok {
					s.doValidate(ctx, id)
				}
			default:
				if id, ok := s.pool.Random(f); ok {
					if f.Bool() {
						s.doGet(ctx, &s.metrics.ReadVisit, "/evv/visits/"+id)
					} else {
						s.doGet(ctx, &s.metrics.ReadEvents, "/evv/visits/"+id+"/events")
					}
				}
			}
		}
	}
}

// doFlow runs one visit end to end. The patient location is read back from
// the server so clock events land inside the geofence unless the flow is
// deliberately off-fence.
func (s *Simulator) doFlow(ctx context.Context, f *gofakeit.Faker) {
	visitID := "sim-visit-" + uuid.NewString()
	patientID := s.patients[f.Number(0, len(s.patients)-1)]
	plannedStart := time.Now().UTC().Truncate(time.Minute)

	ok, _ := s.post(ctx, &s.metrics.PushSchedule, "/evv/schedules", map[string]any{
		"visit_id":      visitID,
		"patient_id":    patientID,
		"planned_start": plannedStart,
	}, http.StatusOK)
	if !ok {
		return
	}
	s.pool.Add(visitID)

	var loc struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := s.getJSON(ctx, "/evv/patients/"+patientID+"/location", &loc); err != nil {
		s.log.Debug().Err(err).Str("patient_id", patientID).Msg("location lookup failed")
		return
	}

	lat, lng := loc.Lat, loc.Lng
	if f.Float64() < s.config.OffFenceRatio {
		lat += 0.01
	}

	clockIn := plannedStart.Add(time.Duration(f.Number(-5, 5)) * time.Minute)
	ok, _ = s.post(ctx, &s.metrics.ClockIn, "/evv/events", map[string]any{
		"visit_id":  visitID,
		"kind":      "clock_in",
		"timestamp": clockIn,
		"lat":       lat,
		"lng":       lng,
	}, http.StatusCreated)
	if !ok {
		return
	}

	ok, _ = s.post(ctx, &s.metrics.ClockOut, "/evv/events", map[string]any{
		"visit_id":  visitID,
		"kind":      "clock_out",
		"timestamp": clockIn.Add(time.Duration(f.Number(30, 120)) * time.Minute),
		"lat":       lat,
		"lng":       lng,
	}, http.StatusCreated)
	if !ok {
		return
	}

	s.doValidate(ctx, visitID)
}

func (s *Simulator) doValidate(ctx context.Context, visitID string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/evv/visits/%s/validation", s.config.APIBaseURL, visitID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		var verdict struct {
			Verified bool `json:"verified"`
		}
		if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&verdict) == nil {
			success = true
			if verdict.Verified {
				atomic.AddInt64(&s.metrics.Verified, 1)
			} else {
				atomic.AddInt64(&s.metrics.Unverified, 1)
			}
		}
	}

	s.metrics.Validate.Record(latency, success, false)
}

func (s *Simulator) post(ctx context.Context, om *OperationMetrics, path string, body any, want int) (bool, int) {
	payload, _ := json.Marshal(body)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		om.Record(latency, false, false)
		return false, 0
	}
	defer resp.Body.Close()

	success := resp.StatusCode == want
	om.Record(latency, success, resp.StatusCode == http.StatusConflict)
	return success, resp.StatusCode
}

func (s *Simulator) doGet(ctx context.Context, om *OperationMetrics, path string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	om.Record(latency, success, false)
}

func (s *Simulator) getJSON(ctx context.Context, path string, dst any) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Push schedule", &s.metrics.PushSchedule)
	printOperationReport("Clock in", &s.metrics.ClockIn)
	printOperationReport("Clock out", &s.metrics.ClockOut)
	printOperationReport("Validate", &s.metrics.Validate)
	printOperationReport("Read visit", &s.metrics.ReadVisit)
	printOperationReport("Read events", &s.metrics.ReadEvents)

	fmt.Printf("Verdicts: verified=%d unverified=%d\n",
		atomic.LoadInt64(&s.metrics.Verified), atomic.LoadInt64(&s.metrics.Unverified))
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
