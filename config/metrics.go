package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Production counters for the back-office monitoring dashboard.
var (
	MetricProductionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_productions_started_total",
		Help: "Number of production runs started.",
	})
	MetricStepsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_production_steps_completed_total",
		Help: "Number of production steps ended (including final steps).",
	})
	MetricProductionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_productions_completed_total",
		Help: "Number of production orders that reached final completion.",
	})
	MetricShortageRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_production_shortage_rejections_total",
		Help: "Number of final completions rejected for insufficient raw material.",
	})
	MetricLotsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_inventory_lots_consumed_total",
		Help: "Number of inventory lots fully or partially consumed.",
	})
	MetricBomExplosions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_bom_explosions_total",
		Help: "Number of BOM explosion requests served.",
	})
)
