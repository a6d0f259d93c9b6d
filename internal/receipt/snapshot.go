package receipt

// Snapshot is a derived aggregate view over the receipt ledger. It is
// recomputed on demand and never persisted.
type Snapshot struct {
	TotalSessions int     `json:"total_sessions"`
	TotalCost     float64 `json:"total_cost"`
	TotalEnergy   float64 `json:"total_energy_kwh"`

	// Last 30 days, all sources.
	MonthlySessions int     `json:"monthly_sessions"`
	MonthlyCost     float64 `json:"monthly_cost"`
	MonthlyEnergy   float64 `json:"monthly_energy_kwh"`

	// Last 30 days split by origin: home sessions vs everything else.
	HomeMonthlySessions   int     `json:"home_monthly_sessions"`
	HomeMonthlyCost       float64 `json:"home_monthly_cost"`
	HomeMonthlyEnergy     float64 `json:"home_monthly_energy_kwh"`
	PublicMonthlySessions int     `json:"public_monthly_sessions"`
	PublicMonthlyCost     float64 `json:"public_monthly_cost"`
	PublicMonthlyEnergy   float64 `json:"public_monthly_energy_kwh"`

	// AverageCostPerKWh is 0 when no receipt carries energy.
	AverageCostPerKWh float64 `json:"average_cost_per_kwh"`

	LastSession *Receipt `json:"last_session,omitempty"`
	TopProvider string   `json:"top_provider,omitempty"`
}

// ResetCounts reports how many rows a Reset cleared from each table
type ResetCounts struct {
	Receipts int `json:"receipts"`
	Emails   int `json:"processed_emails"`
	PDFs     int `json:"processed_pdfs"`
}
