package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCounterIncAndAdd(t *testing.T) {
	c, err := NewCounter("test_counter", "a test counter", prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	c.Inc()
	c.Add(4)
	if c.Read() != 5 {
		t.Errorf("Read() = %d, want 5", c.Read())
	}
}

func TestGaugeSetAndAdd(t *testing.T) {
	g, err := NewGauge("test_gauge", "a test gauge", prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	g.Set(10)
	g.Add(-3)
	if g.Read() != 7 {
		t.Errorf("Read() = %f, want 7", g.Read())
	}
}

func TestAveragerReadsMean(t *testing.T) {
	a, err := NewAverager("test_avg", "a test averager", prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	a.Observe(2)
	a.Observe(4)
	a.Observe(9)
	if got, want := a.Read(), 5.0; got != want {
		t.Errorf("Read() = %f, want %f", got, want)
	}
}

func TestAveragerReadsZeroWithNoObservations(t *testing.T) {
	a, _ := NewAverager("test_avg_empty", "a test averager", prometheus.NewRegistry())
	if a.Read() != 0 {
		t.Error("Read() on an empty Averager should be 0, not NaN or a panic")
	}
}

func TestNewRunMetricsRegistersEverythingOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRunMetrics(reg); err != nil {
		t.Fatalf("NewRunMetrics failed: %v", err)
	}
	if _, err := NewRunMetrics(reg); err == nil {
		t.Fatal("registering a second RunMetrics set against the same registry must fail on duplicate metric names")
	}
}
