package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// statementConnector opens sqlite3 connections whose statements are logged
// (SQL text, arguments, elapsed time and error) at debug level.
type statementConnector struct {
	dsn    string
	logger *slog.Logger
	driver *sqlite3.SQLiteDriver
}

type statementConn struct {
	conn   driver.Conn
	logger *slog.Logger
}

type statementStmt struct {
	stmt   driver.Stmt
	query  string
	logger *slog.Logger
}

// NewLoggingConnector returns a driver.Connector for sql.OpenDB that logs every
// statement. If logger is nil, slog.Default() is used.
func NewLoggingConnector(dsn string, logger *slog.Logger) (driver.Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &statementConnector{dsn: dsn, logger: logger, driver: &sqlite3.SQLiteDriver{}}, nil
}

func (c *statementConnector) Driver() driver.Driver {
	return connectorOnlyDriver{}
}

func (c *statementConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &statementConn{conn: conn, logger: c.logger}, nil
}

type connectorOnlyDriver struct{}

func (connectorOnlyDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("sqlite3-log: open through sql.OpenDB(NewLoggingConnector(...))")
}

func (c *statementConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *statementConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if prep, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = prep.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		c.logger.Debug("sql prepare failed", "sql", query, "error", err)
		return nil, err
	}
	return &statementStmt{stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *statementConn) Close() error {
	return c.conn.Close()
}

func (c *statementConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *statementConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if beginTx, ok := c.conn.(driver.ConnBeginTx); ok {
		return beginTx.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019 – fallback when underlying conn does not implement ConnBeginTx
	return c.conn.Begin()
}

func (s *statementStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *statementStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if execCtx, ok := s.stmt.(driver.StmtExecContext); ok {
		res, err = execCtx.ExecContext(ctx, args)
	} else {
		//nolint:staticcheck // SA1019 – fallback when underlying stmt does not implement StmtExecContext
		res, err = s.stmt.Exec(namedToValues(args))
	}
	s.log("exec", args, start, err)
	return res, err
}

func (s *statementStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *statementStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if queryCtx, ok := s.stmt.(driver.StmtQueryContext); ok {
		rows, err = queryCtx.QueryContext(ctx, args)
	} else {
		//nolint:staticcheck // SA1019 – fallback when underlying stmt does not implement StmtQueryContext
		rows, err = s.stmt.Query(namedToValues(args))
	}
	s.log("query", args, start, err)
	return rows, err
}

func (s *statementStmt) Close() error {
	return s.stmt.Close()
}

func (s *statementStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *statementStmt) log(op string, args []driver.NamedValue, start time.Time, err error) {
	attrs := []any{
		"op", op,
		"sql", s.query,
		"args", formatArgs(args),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Debug("sql", attrs...)
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func namedToValues(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}

func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		v := formatArg(a.Value)
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		out[i] = v
	}
	return out
}

func formatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
