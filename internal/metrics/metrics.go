package metrics

import "expvar"

var (
	OutcomesIngested  = expvar.NewInt("outcomes_ingested")
	SignalsEmitted    = expvar.NewInt("signals_emitted")
	SignalsSuppressed = expvar.NewInt("signals_suppressed")
	SimulationsRun    = expvar.NewInt("simulations_run")
	SimulationTimeouts = expvar.NewInt("simulation_timeouts")
	StopTransitions   = expvar.NewInt("stop_transitions")
)
