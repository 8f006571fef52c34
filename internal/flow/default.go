package flow

// Default returns a fresh copy of the built-in demo journey. It is what a
// session starts from when the launch file is absent or unreadable.
func Default() Document {
	return Document{
		Name:        "Global Launch",
		Description: "Reference launch journey from pilot to sustained operation.",
		Steps: []Step{
			{
				ID: "1", Title: "Kick-off & scope", Phase: PhasePilot, Path: PathPrimary,
				Description: "Agree launch scope, markets and success criteria.",
				Owner:       "Launch office", Timeline: "2 weeks",
				Volume: 100, Success: "95", Status: StatusCompleted,
			},
			{
				ID: "2", Title: "Pilot market selection", Phase: PhasePilot, Path: PathPrimary,
				Description: "Shortlist pilot markets and confirm local sponsors.",
				Owner:       "Strategy", Timeline: "3 weeks",
				Volume: 90, Success: "88%", Status: StatusCompleted, Order: 1,
			},
			{
				ID: "3", Title: "Data readiness", Phase: PhasePrepare, Path: PathAlternative,
				Description: "Cleanse master data and prepare migration loads.",
				Owner:       "Data team", Timeline: "4 weeks",
				Volume: 80, Success: "82", Status: StatusInProgress,
			},
			{
				ID: "4", Title: "Environment startup", Phase: PhasePrepare, Path: PathPrimary,
				Description: "Provision environments and access.",
				Owner:       "Platform", Timeline: "2 weeks",
				Volume: 85, Success: "90", Status: StatusInProgress, Order: 1,
			},
			{
				ID: "5", Title: "Go-live", Phase: PhaseExecute, Path: PathPrimary,
				Description: "Cut over pilot markets.\nHypercare for the first two weeks.",
				Owner:       "Launch office", Timeline: "1 week",
				Volume: 75, Success: "85", Status: StatusPlanned,
			},
			{
				ID: "6", Title: "Adoption programme", Phase: PhaseExecute, Path: PathEnhanced,
				Description: "Training, champions network and usage tracking.",
				Owner:       "Change management", Timeline: "6 weeks",
				Volume: 70, Success: "78", Status: StatusPlanned, Order: 1,
			},
			{
				ID: "7", Title: "Market exit review", Phase: PhaseClose, Path: PathExit,
				Description: "Decide on markets that do not meet the adoption threshold.",
				Owner:       "Steering committee", Timeline: "1 week",
				Volume: 15, Success: "n/a", Status: StatusBlocked,
			},
			{
				ID: "8", Title: "Handover to operations", Phase: PhaseClose, Path: PathPrimary,
				Description: "Transfer ownership to run teams and close the project.",
				Owner:       "Operations", Timeline: "2 weeks",
				Volume: 60, Success: "92", Status: StatusPlanned, Order: 1,
			},
		},
	}
}
