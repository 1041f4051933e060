/*
MIT License

Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Query is one lookback check: a row in Table whose Column is inside the window counts as activity.
type Query struct {
	Name   string
	Table  string
	Column string
}

// SQL renders the query with the window in hours as its only parameter.
func (q Query) SQL() string {
	return fmt.Sprintf("SELECT `%[2]s` FROM `%[1]s` WHERE `%[2]s` > DATE_SUB(NOW(), INTERVAL ? HOUR) LIMIT 1", q.Table, q.Column)
}

// Queries are the activity checks in the order they are evaluated.
var Queries = []Query{
	{Name: "workspace-instances", Table: "d_b_workspace_instance", Column: "creationTime"},
	{Name: "users", Table: "d_b_user", Column: "creationDate"},
	{Name: "user-modifications", Table: "d_b_user", Column: "_lastModified"},
	{Name: "heartbeats", Table: "d_b_workspace_instance_user", Column: "lastSeen"},
}

// Target is the database of one environment.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Result holds one flag per entry in Queries.
type Result struct {
	Found map[string]bool
}

// Any reports whether at least one query returned a row.
func (r Result) Any() bool {
	for _, found := range r.Found {
		if found {
			return true
		}
	}
	return false
}

// Prober runs the activity queries for an environment.
type Prober interface {
	RecentActivity(ctx context.Context, target Target, window time.Duration) (Result, error)
}

// Opener opens a database handle from a driver name and DSN.
type Opener func(driverName, dsn string) (*sql.DB, error)

// MySQLProber runs the queries over the MySQL protocol.
type MySQLProber struct {
	connectTimeout time.Duration
	open           Opener
}

// NewMySQLProber creates a prober. A zero timeout leaves dialing unbounded.
func NewMySQLProber(connectTimeout time.Duration) *MySQLProber {
	return &MySQLProber{connectTimeout: connectTimeout, open: sql.Open}
}

// DSN returns the driver connection string for target.
func (p *MySQLProber) DSN(target Target) string {
	cfg := mysql.NewConfig()
	cfg.User = target.User
	cfg.Passwd = target.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
	cfg.DBName = target.Database
	cfg.Timeout = p.connectTimeout
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// RecentActivity runs every query and reports which returned a row. Any failure aborts the probe.
func (p *MySQLProber) RecentActivity(ctx context.Context, target Target, window time.Duration) (Result, error) {
	logger := log.FromContext(ctx).WithValues("host", target.Host)

	if window <= 0 {
		return Result{}, errors.New("activity window must be positive")
	}

	db, err := p.open("mysql", p.DSN(target))
	if err != nil {
		return Result{}, fmt.Errorf("failed to open database on %s: %w", target.Host, err)
	}
	defer db.Close() //nolint:errcheck
	db.SetMaxOpenConns(1)

	hours := int(window / time.Hour)
	if hours == 0 {
		hours = 1
	}

	result := Result{Found: make(map[string]bool, len(Queries))}
	for _, q := range Queries {
		found, err := queryHasRow(ctx, db, q, hours)
		if err != nil {
			return Result{}, fmt.Errorf("activity query %s failed on %s: %w", q.Name, target.Host, err)
		}
		result.Found[q.Name] = found
		logger.V(1).Info("Checked database activity", "query", q.Name, "found", found)
	}

	return result, nil
}

func queryHasRow(ctx context.Context, db *sql.DB, q Query, hours int) (bool, error) {
	rows, err := db.QueryContext(ctx, q.SQL(), hours)
	if err != nil {
		return false, err
	}
	defer rows.Close() //nolint:errcheck

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}
