package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes state-database connection pool statistics
// as Prometheus gauges.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	gauge := func(name, help string, value func(*pgxpool.Stat) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "state_db_pool_" + name,
			Help: help,
		}, func() float64 {
			return float64(value(pool.Stat()))
		})
	}

	prometheus.MustRegister(
		gauge("acquired_conns", "Connections currently checked out of the state database pool",
			(*pgxpool.Stat).AcquiredConns),
		gauge("idle_conns", "Idle connections in the state database pool",
			(*pgxpool.Stat).IdleConns),
		gauge("total_conns", "Total connections held by the state database pool",
			(*pgxpool.Stat).TotalConns),
		gauge("max_conns", "Configured connection ceiling of the state database pool",
			(*pgxpool.Stat).MaxConns),
	)
}
