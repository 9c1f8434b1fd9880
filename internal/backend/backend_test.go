package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budgetboard/internal/config"
	"budgetboard/internal/core"
	"budgetboard/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("FromAppConfig(nil) should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatal("FromAppConfig() should reject unknown backends")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "json",
		DatasetPaths: []string{"a.json", "b.json"},
		SQLiteDBPath: "x.db",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != JSONBackend || len(cfg.DatasetPaths) != 2 || cfg.SQLiteDBPath != "x.db" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}
}

func TestImportSourceFromAppConfig(t *testing.T) {
	cfg, err := ImportSourceFromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		ImportSource: "memory",
	})
	if err != nil {
		t.Fatalf("ImportSourceFromAppConfig() error = %v", err)
	}
	if cfg.Type != MemoryBackend {
		t.Errorf("Type = %s, want memory", cfg.Type)
	}

	if _, err := ImportSourceFromAppConfig(&config.Config{ImportSource: "sqlite"}); err == nil {
		t.Error("sqlite should not be accepted as an import source")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"json ok", Config{Type: JSONBackend, DatasetPaths: []string{"a.json"}}, ""},
		{"json without paths", Config{Type: JSONBackend}, "dataset path"},
		{"sqlite ok", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleSheetName: "S"}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "S"}, "GoogleServiceAccount"},
		{"sheets ok", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "S", GoogleServiceAccountJSON: "{}"}, ""},
		{"memory ok", Config{Type: MemoryBackend}, ""},
		{"invalid", Config{Type: "postgres"}, "invalid backend type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != strings.Join(config.Backends, ",") {
		t.Errorf("GetBackendTypeStrings() = %s, config.Backends = %v", got, config.Backends)
	}
}

const jsonDataset = `[
  {"department":"Health","branch":"Hospitals","program":"Emergency","fund_type":"Capital","budget_year":"2018","budget":300},
  {"department":"Parks","branch":"Forestry","program":"Trees","fund_type":"Operating","budget_year":"2017","budget":200}
]`

func TestCreateBackend_JSON(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte(jsonDataset), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: JSONBackend, DatasetPaths: []string{a, b}})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	records, err := res.Backend.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 4 || records[2].Department != "Health" {
		t.Fatalf("Fetch() = %+v", records)
	}
	if !strings.HasPrefix(res.Source, "json:") {
		t.Errorf("Source = %q", res.Source)
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	records, err := res.Backend.Fetch(context.Background())
	if err != nil || len(records) == 0 {
		t.Fatalf("Fetch() = %d records, %v", len(records), err)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	seed := []core.Expenditure{{Department: "Health", Branch: "B", Program: "P", FundType: "Capital", BudgetYear: "2018", Budget: 10}}
	if err := repo.ReplaceAll(context.Background(), "test", seed); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	repo.Close()

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	records, err := res.Backend.Fetch(context.Background())
	if err != nil || len(records) != 1 || records[0].Budget != 10 {
		t.Fatalf("Fetch() = %+v, %v", records, err)
	}
}

func TestCreateBackend_Invalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "nope"}); err == nil {
		t.Fatal("CreateBackend() should reject an invalid type")
	}
}
