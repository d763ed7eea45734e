// Package drivertest provides vendor-agnostic conformance testing for scan
// drivers. Any blocking or event-driven driver implementation can be run
// through the suite to verify it honors the contract the controller relies
// on: context handling, record shape, repeatability, and stop idempotency.
package drivertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wireless-discovery/wdc/internal/driver"
)

// Capabilities defines the expected behavior for conformance testing.
type Capabilities struct {
	// MinRecords is the minimum number of records a successful scan yields.
	MinRecords int
	// MaxScanTime bounds how long one scan pass may take.
	MaxScanTime time.Duration
}

// ConformanceResult represents the result of a single conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	DriverModel   string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunBlockingConformance runs the conformance suite for a blocking driver.
func RunBlockingConformance(t *testing.T, newDriver func() driver.BlockingDriver, caps Capabilities) {
	startTime := time.Now()

	report := &ConformanceReport{
		DriverModel:   newDriver().Info().Model,
		OverallPassed: true,
	}

	runInfoTest(newDriver().Info(), report)
	runBlockingScanTests(newDriver, caps, report)
	runBlockingCancellationTest(newDriver, report)

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Driver conformance failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

// RunEventConformance runs the conformance suite for an event-driven driver.
func RunEventConformance(t *testing.T, newDriver func() driver.EventDriver, caps Capabilities) {
	startTime := time.Now()

	report := &ConformanceReport{
		DriverModel:   newDriver().Info().Model,
		OverallPassed: true,
	}

	runInfoTest(newDriver().Info(), report)
	runEventDeliveryTest(newDriver, caps, report)
	runEventStopTests(newDriver, caps, report)

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Driver conformance failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

// runInfoTest checks that driver metadata is populated.
func runInfoTest(info driver.Info, report *ConformanceReport) {
	result := ConformanceResult{
		TestName: "Info_Basic",
		Details:  make(map[string]interface{}),
	}

	switch {
	case info.Model == "":
		result.Error = "Info returned empty model"
	case info.Kind != driver.KindWiFi && info.Kind != driver.KindBLE:
		result.Error = fmt.Sprintf("Info returned unknown kind %q", info.Kind)
	default:
		result.Passed = true
		result.Details["kind"] = info.Kind
		result.Details["model"] = info.Model
	}

	report.addResult(result)
}

// runBlockingScanTests checks the basic scan contract: records arrive, carry
// identities, and a second pass still works.
func runBlockingScanTests(newDriver func() driver.BlockingDriver, caps Capabilities, report *ConformanceReport) {
	d := newDriver()
	ctx := context.Background()

	result := ConformanceResult{
		TestName: "Scan_Basic",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	records, err := d.Scan(ctx)
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("Scan failed: %v", err)
	case len(records) < caps.MinRecords:
		result.Error = fmt.Sprintf("Scan returned %d records, expected at least %d", len(records), caps.MinRecords)
	case caps.MaxScanTime > 0 && result.Duration > caps.MaxScanTime:
		result.Error = fmt.Sprintf("Scan took %v, bound is %v", result.Duration, caps.MaxScanTime)
	default:
		result.Passed = true
		for _, rec := range records {
			if len(rec.Identity) == 0 {
				result.Passed = false
				result.Error = "Scan returned a record with empty identity"
				break
			}
		}
		result.Details["records"] = len(records)
	}
	report.addResult(result)

	// A driver must survive repeated passes on the same instance.
	repeat := ConformanceResult{
		TestName: "Scan_Repeatable",
		Details:  make(map[string]interface{}),
	}
	start = time.Now()
	_, err = d.Scan(ctx)
	repeat.Duration = time.Since(start)

	if err != nil {
		repeat.Error = fmt.Sprintf("Second Scan failed: %v", err)
	} else {
		repeat.Passed = true
	}
	report.addResult(repeat)
}

// runBlockingCancellationTest checks that a cancelled context is honored.
func runBlockingCancellationTest(newDriver func() driver.BlockingDriver, report *ConformanceReport) {
	d := newDriver()

	result := ConformanceResult{
		TestName: "Scan_ContextCancellation",
		Details:  make(map[string]interface{}),
	}

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	records, err := d.Scan(cancelledCtx)
	result.Duration = time.Since(start)

	// Instant drivers may return their batch before noticing cancellation;
	// what matters is that slow ones do not hang.
	if err == nil && result.Duration > 100*time.Millisecond {
		result.Error = fmt.Sprintf("Scan ignored cancelled context for %v", result.Duration)
	} else {
		result.Passed = true
		result.Details["records"] = len(records)
		if err != nil {
			result.Details["error"] = err.Error()
		}
	}

	report.addResult(result)
}

// runEventDeliveryTest checks that Start delivers records via callback and
// signals completion exactly once.
func runEventDeliveryTest(newDriver func() driver.EventDriver, caps Capabilities, report *ConformanceReport) {
	d := newDriver()

	result := ConformanceResult{
		TestName: "Event_Delivery",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	var mu sync.Mutex
	var records int
	var completions int
	done := make(chan error, 1)

	err := d.Start(context.Background(),
		func(rec driver.RawRecord) {
			mu.Lock()
			records++
			mu.Unlock()
		},
		func(scanErr error) {
			mu.Lock()
			completions++
			mu.Unlock()
			done <- scanErr
		},
	)
	if err != nil {
		result.Error = fmt.Sprintf("Start failed: %v", err)
		report.addResult(result)
		return
	}

	wait := caps.MaxScanTime
	if wait <= 0 {
		wait = 5 * time.Second
	}

	select {
	case scanErr := <-done:
		result.Duration = time.Since(start)
		mu.Lock()
		gotRecords, gotCompletions := records, completions
		mu.Unlock()

		switch {
		case scanErr != nil:
			result.Error = fmt.Sprintf("scan completed with error: %v", scanErr)
		case gotRecords < caps.MinRecords:
			result.Error = fmt.Sprintf("delivered %d records, expected at least %d", gotRecords, caps.MinRecords)
		case gotCompletions != 1:
			result.Error = fmt.Sprintf("completion callback fired %d times", gotCompletions)
		default:
			result.Passed = true
			result.Details["records"] = gotRecords
		}
	case <-time.After(wait):
		result.Duration = time.Since(start)
		result.Error = fmt.Sprintf("no completion within %v", wait)
	}

	report.addResult(result)
}

// runEventStopTests checks Stop is safe before, during, and after a scan.
func runEventStopTests(newDriver func() driver.EventDriver, caps Capabilities, report *ConformanceReport) {
	d := newDriver()

	result := ConformanceResult{
		TestName: "Event_StopIdempotent",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	// Stop without a running scan must not panic or block.
	d.Stop()

	err := d.Start(context.Background(), func(driver.RawRecord) {}, func(error) {})
	if err != nil {
		result.Error = fmt.Sprintf("Start after idle Stop failed: %v", err)
		report.addResult(result)
		return
	}

	d.Stop()
	d.Stop()
	result.Duration = time.Since(start)

	// A stopped driver must accept a fresh start.
	if err := d.Start(context.Background(), func(driver.RawRecord) {}, func(error) {}); err != nil {
		result.Error = fmt.Sprintf("Start after Stop failed: %v", err)
	} else {
		d.Stop()
		result.Passed = true
	}

	report.addResult(result)
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("DRIVER CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Driver: %s", report.DriverModel)
	t.Logf("Total Tests: %d", report.TotalTests)
	t.Logf("Passed: %d", report.PassedTests)
	t.Logf("Failed: %d", report.FailedTests)
	t.Logf("Overall: %s", map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed])
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}

		details := result.Error
		if details == "" && len(result.Details) > 0 {
			var detailParts []string
			for k, v := range result.Details {
				detailParts = append(detailParts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(detailParts, ", ")
		}

		t.Logf("%-30s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), details)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}
