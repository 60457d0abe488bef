package models

// SimulationActiveKey gates whether the genesis driver settles work on a tick.
// Stored values are "true" or "false"; a missing row means active.
const SimulationActiveKey = "simulation_active"

type SystemConfig struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EconomyStats is the aggregate read model behind GET /stats.
type EconomyStats struct {
	TotalUsers  int64
	TotalMinted float64
	TotalTasks  int64
}
