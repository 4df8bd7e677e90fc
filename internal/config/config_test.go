package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 8100 || c.Server.Host != "0.0.0.0" {
		t.Fatalf("server = %+v", c.Server)
	}
	if c.Simulation.TickInterval != 3*time.Second || c.Simulation.RegimeInterval != time.Minute {
		t.Fatalf("intervals = %v / %v", c.Simulation.TickInterval, c.Simulation.RegimeInterval)
	}
	if c.Simulation.ShockDecayMinPeriods != 2 || c.Simulation.ShockDecayMaxPeriods != 5 {
		t.Fatalf("shock decay = %d-%d", c.Simulation.ShockDecayMinPeriods, c.Simulation.ShockDecayMaxPeriods)
	}
	if c.Simulation.FlashRecoveryDelay != 5*time.Second || c.Simulation.FlashRestoreDelay != 20*time.Second {
		t.Fatalf("flash delays = %v / %v", c.Simulation.FlashRecoveryDelay, c.Simulation.FlashRestoreDelay)
	}
	if c.Simulation.SectorBiasDecay != 0.85 || c.Simulation.EventLogLimit != 0 || c.Simulation.Selected != "SAP.DE" {
		t.Fatalf("simulation = %+v", c.Simulation)
	}
	if !c.Simulation.Autostart || !c.Metrics.Enabled || c.Metrics.Path != "/metrics" {
		t.Fatalf("autostart=%v metrics=%+v", c.Simulation.Autostart, c.Metrics)
	}
	if c.KafkaEnabled() {
		t.Fatal("kafka enabled without brokers")
	}
	if c.Addr() != "0.0.0.0:8100" {
		t.Fatalf("addr = %q", c.Addr())
	}
}

func TestLoadFile(t *testing.T) {
	c, err := Load([]string{"-config", "testdata/config.yaml"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Addr() != "127.0.0.1:9200" || c.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("server = %+v", c.Server)
	}
	if c.Log.Level != "debug" || c.Log.Format != "console" {
		t.Fatalf("log = %+v", c.Log)
	}
	if c.Simulation.Seed != 42 || c.Simulation.TickInterval != time.Second || c.Simulation.RegimeInterval != 15*time.Second {
		t.Fatalf("simulation = %+v", c.Simulation)
	}
	// untouched keys keep their defaults
	if c.Simulation.ShockDecayMinPeriods != 2 || c.Simulation.ShockDecayMaxPeriods != 3 {
		t.Fatalf("shock decay = %d-%d", c.Simulation.ShockDecayMinPeriods, c.Simulation.ShockDecayMaxPeriods)
	}
	if !reflect.DeepEqual(c.Kafka.Brokers, []string{"localhost:9092", "localhost:9093"}) {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Kafka.QuoteTopic != "sim.quotes" || c.Kafka.EventTopic != "marketsim.regime" || c.Kafka.Compression != "lz4" {
		t.Fatalf("kafka = %+v", c.Kafka)
	}
	if c.File != "testdata/config.yaml" {
		t.Fatalf("file = %q", c.File)
	}
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("MARKETSIM_CONFIG", "testdata/config.yaml")
	t.Setenv("MARKETSIM_PORT", "9300")
	t.Setenv("MARKETSIM_SELECTED", "ALV.DE")
	t.Setenv("MARKETSIM_KAFKA_BROKERS", "broker-a:9092, broker-b:9092")

	c, err := Load([]string{"-port", "9400", "-tick-interval", "2s"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 9400 {
		t.Fatalf("port = %d, flag should win over env and file", c.Server.Port)
	}
	if c.Simulation.Selected != "ALV.DE" {
		t.Fatalf("selected = %q, env should win over file", c.Simulation.Selected)
	}
	if c.Simulation.TickInterval != 2*time.Second {
		t.Fatalf("tick = %v", c.Simulation.TickInterval)
	}
	if c.Log.Level != "debug" {
		t.Fatalf("log level = %q, file should win over defaults", c.Log.Level)
	}
	if !reflect.DeepEqual(c.Kafka.Brokers, []string{"broker-a:9092", "broker-b:9092"}) {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"port out of range", []string{"-port", "70000"}, nil},
		{"regime faster than tick", []string{"-config", "testdata/invalid.yaml"}, nil},
		{"decay above one", []string{"-sector-bias-decay", "1.5"}, nil},
		{"shock range inverted", []string{"-shock-decay-min", "4", "-shock-decay-max", "3"}, nil},
		{"bad log level", []string{"-log-level", "loud"}, nil},
		{"bad env value", nil, map[string]string{"MARKETSIM_TICK_INTERVAL": "soon"}},
		{"unknown flag", []string{"-bogus"}, nil},
		{"bad broker", []string{"-kafka-brokers", "not a broker"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load([]string{"-config", "testdata/nope.yaml"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrInvalid) {
		t.Fatal("missing file is an I/O error, not a validation error")
	}
}

func TestEnvName(t *testing.T) {
	if got := envName("kafka-quote-topic"); got != "MARKETSIM_KAFKA_QUOTE_TOPIC" {
		t.Fatalf("envName = %q", got)
	}
}
