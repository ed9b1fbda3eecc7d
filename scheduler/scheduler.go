// Package scheduler wires the poll orchestrators to periodic jobs.
// It runs three independent loops:
// - Candle streaming tick every 10 seconds
// - Price alert evaluation every 60 seconds
// - Automated trade rule evaluation every 60 seconds
//
// Jobs run in singleton mode so a slow tick delays, but never overlaps,
// the next one. The jobs are registered in jobs.go
package scheduler
