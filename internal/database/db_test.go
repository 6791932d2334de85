package database

import (
	"context"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "new.db"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer db.Close()

	if db.conn == nil {
		t.Error("Expected database connection but got nil")
	}
	if db.Driver() != driverSQLite {
		t.Errorf("Expected sqlite driver, got %s", db.Driver())
	}
}

func TestNewTracesStatements(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	db, err := New(filepath.Join(t.TempDir(), "traced.db"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer db.Close()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")
	var one int
	if err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	parent.End()

	var query *tracetest.SpanStub
	spans := exporter.GetSpans()
	for i := range spans {
		if spans[i].Name == "sql.conn.query" {
			query = &spans[i]
		}
	}
	if query == nil {
		t.Fatal("Expected a sql.conn.query span")
	}
	if query.SpanKind != trace.SpanKindClient {
		t.Errorf("Expected client span, got %v", query.SpanKind)
	}
	if query.Parent.SpanID() != parent.SpanContext().SpanID() {
		t.Error("Query span should be a child of the caller's span")
	}

	var system string
	for _, kv := range query.Attributes {
		if kv.Key == "db.system" {
			system = kv.Value.AsString()
		}
	}
	if system != "sqlite" {
		t.Errorf("Expected db.system sqlite, got %q", system)
	}
}

func TestDBSystem(t *testing.T) {
	tests := map[string]string{
		driverSQLite:   "sqlite",
		driverPostgres: "postgresql",
		driverMySQL:    "mysql",
	}
	for driver, want := range tests {
		if got := dbSystem(driver).Value.AsString(); got != want {
			t.Errorf("dbSystem(%s) = %s, want %s", driver, got, want)
		}
	}
}

func TestNewWithInvalidPath(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil && db != nil {
		db.Close()
		t.Error("Expected error when creating database in a missing directory")
	}
}

func TestClose(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "close.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
		source string
	}{
		{"postgres://u:p@localhost/geo?sslmode=disable", driverPostgres, "postgres://u:p@localhost/geo?sslmode=disable"},
		{"postgresql://localhost/geo", driverPostgres, "postgresql://localhost/geo"},
		{"host=localhost user=geo dbname=geo", driverPostgres, "host=localhost user=geo dbname=geo"},
		{"mysql://geo:pw@tcp(localhost:3306)/geo?parseTime=true", driverMySQL, "geo:pw@tcp(localhost:3306)/geo?parseTime=true"},
		{"sqlite://data/geo.db", driverSQLite, "data/geo.db"},
		{"geoanalyzer.db", driverSQLite, "geoanalyzer.db"},
		{":memory:", driverSQLite, ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source := parseDSN(tt.dsn)
			if driver != tt.driver {
				t.Errorf("expected driver %s, got %s", tt.driver, driver)
			}
			if source != tt.source {
				t.Errorf("expected source %s, got %s", tt.source, source)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: driverPostgres}
	lite := &DB{driver: driverSQLite}
	query := "SELECT * FROM analyses WHERE id = ? AND profile = ? LIMIT ?"

	if got := pg.rebind(query); got != "SELECT * FROM analyses WHERE id = $1 AND profile = $2 LIMIT $3" {
		t.Errorf("unexpected postgres query: %s", got)
	}
	if got := lite.rebind(query); got != query {
		t.Errorf("sqlite query should be unchanged, got %s", got)
	}
}

func TestMigrate(t *testing.T) {
	db := NewTestDB(t)

	var version int
	if err := db.conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != migrations[len(migrations)-1].Version {
		t.Errorf("Expected version %d, got %d", migrations[len(migrations)-1].Version, version)
	}

	// Running again is a no-op
	if err := db.Migrate(); err != nil {
		t.Errorf("Second migration run failed: %v", err)
	}
}
