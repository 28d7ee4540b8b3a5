package configs

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DBType 数据库类型，配置中允许别名，见 Dialect.
type DBType string

const (
	DBPostgres DBType = "postgres"
	DBMySQL    DBType = "mysql"
	DBSQLite   DBType = "sqlite"
)

// dbAliases 配置中可使用的别名.
var dbAliases = map[DBType]DBType{
	"postgresql": DBPostgres,
	"postgre":    DBPostgres,
	"pg":         DBPostgres,
	"mariadb":    DBMySQL,
	"sqlite3":    DBSQLite,
}

const (
	DefaultDatabaseHost    = "localhost"
	DefaultDatabasePort    = 5432
	DefaultDatabaseUser    = "postgres"
	DefaultDatabaseName    = "skelvault"
	DefaultDatabaseSSLMode = "disable"
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = time.Hour
	DefaultSlowThreshold   = 200 * time.Millisecond
)

// DBConfig 数据库配置.
//
// DSN 非空时直接使用，忽略 Host 等分项.
type DBConfig struct {
	Type     DBType `mapstructure:"type"     rule:"oneof=postgres postgresql postgre pg mysql mariadb sqlite sqlite3"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"     rule:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port"     rule:"min=0,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" rule:"required"`
	SSLMode  string `mapstructure:"sslmode"  rule:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"    rule:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    rule:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" rule:"min=0"`

	// SlowThreshold 超过该耗时的 SQL 以 warn 记录.
	SlowThreshold time.Duration `mapstructure:"slow_threshold" rule:"min=0"`
	// LogLevel gorm 日志级别，为空时 debug 模式下为 info，否则为 warn.
	LogLevel string `mapstructure:"log_level" rule:"omitempty,oneof=silent error warn info"`
}

// Dialect 去掉别名后的数据库类型.
func (c *DBConfig) Dialect() DBType {
	t := DBType(strings.ToLower(string(c.Type)))
	if canon, ok := dbAliases[t]; ok {
		return canon
	}

	return t
}

// GetDSN 连接串，未知类型返回空串.
func (c *DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch c.Dialect() {
	case DBPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	case DBMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Database)
	case DBSQLite:
		// ":memory:" 为共享内存库，多个连接看到同一份数据
		if c.Database == ":memory:" {
			return "file::memory:?cache=shared"
		}

		return "file:" + c.Database + ".db?_pragma=busy_timeout(5000)"
	default:
		return ""
	}
}

// Target 日志里展示的连接目标，不含凭据.
func (c *DBConfig) Target() string {
	if c.Dialect() == DBSQLite {
		return c.Database
	}

	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/" + c.Database
}

func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", DBSQLite)
	v.SetDefault("db.host", DefaultDatabaseHost)
	v.SetDefault("db.port", DefaultDatabasePort)
	v.SetDefault("db.user", DefaultDatabaseUser)
	v.SetDefault("db.database", DefaultDatabaseName)
	v.SetDefault("db.sslmode", DefaultDatabaseSSLMode)
	v.SetDefault("db.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("db.conn_max_lifetime", DefaultConnMaxLifetime)
	v.SetDefault("db.slow_threshold", DefaultSlowThreshold)
}
