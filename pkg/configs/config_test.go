package configs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if len(cfg.Modules) != 1 || cfg.Modules[0].Name != "page" {
		t.Fatalf("default modules = %+v", cfg.Modules)
	}
}

func TestValidateRejectsBadModules(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"duplicate": func(c *AppConfig) { c.Modules = append(c.Modules, c.Modules[0]) },
		"reserved":  func(c *AppConfig) { c.Modules[0].Name = ReservedModuleNames[0] },
		"not ident": func(c *AppConfig) { c.Modules[0].Name = "Page-2" },
		"bad rule":  func(c *AppConfig) { c.Modules[0].Bones[0].Rule = "nosuchrule" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDBDialectAndDSN(t *testing.T) {
	cases := []struct {
		cfg     DBConfig
		dialect DBType
		dsn     string
	}{
		{DBConfig{Type: "pg", Host: "db", Port: 5432, User: "u", Password: "p", Database: "sv", SSLMode: "disable"},
			DBPostgres, "host=db port=5432 user=u password=p dbname=sv sslmode=disable"},
		{DBConfig{Type: "MariaDB", Host: "db", Port: 3306, User: "u", Password: "p", Database: "sv"},
			DBMySQL, "u:p@tcp(db:3306)/sv?charset=utf8mb4&parseTime=True&loc=UTC"},
		{DBConfig{Type: "sqlite", Database: ":memory:"}, DBSQLite, "file::memory:?cache=shared"},
		{DBConfig{Type: "sqlite3", Database: "data/sv"}, DBSQLite, "file:data/sv.db?_pragma=busy_timeout(5000)"},
		{DBConfig{Type: "postgres", DSN: "postgres://x"}, DBPostgres, "postgres://x"},
		{DBConfig{Type: "oracle"}, "oracle", ""},
	}

	for _, tc := range cases {
		if got := tc.cfg.Dialect(); got != tc.dialect {
			t.Errorf("%s: dialect = %s, want %s", tc.cfg.Type, got, tc.dialect)
		}

		if got := tc.cfg.GetDSN(); got != tc.dsn {
			t.Errorf("%s: dsn = %q, want %q", tc.cfg.Type, got, tc.dsn)
		}
	}
}

func TestInitConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := strings.Join([]string{
		"server:",
		"  port: 9000",
		"  reload_config: false",
		"db:",
		"  type: sqlite",
		"  database: ':memory:'",
		"mq:",
		"  nats:",
		"    ack_wait: 5s",
		"modules:",
		"  - name: news",
		"    bones:",
		"      - name: title",
		"        type: string",
		"        required: true",
	}, "\n")

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvPrefix+"_GC_GRACE_SWEEPS", "7")

	if err := InitConfig(dir); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	cfg := GetConfig()
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}

	if cfg.GC.GraceSweeps != 7 {
		t.Errorf("grace sweeps = %d, want env override 7", cfg.GC.GraceSweeps)
	}

	if cfg.MQ.NATS.AckWait != 5*time.Second || cfg.MQ.NATS.QueueGroup != DefaultNATSQueueGroup {
		t.Errorf("nats = %+v", cfg.MQ.NATS)
	}

	if len(cfg.Modules) != 1 || cfg.Modules[0].Name != "news" || cfg.Modules[0].KindName() != "news" {
		t.Errorf("modules = %+v", cfg.Modules)
	}
}
