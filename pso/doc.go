// Package pso searches control setpoints with a particle swarm.
//
// Candidate controls live in the unit box [0,1]^N and are spliced into the
// newest time step of a forecasting window. Two oracles, energy and room
// temperature, score every window; the cost is the predicted energy plus
// power-law penalties for temperatures outside a comfort band.
//
// A Coordinator runs one Swarm per validation window. After each round the
// winning controls are written into the lookback history of the following
// windows, so later rounds see the decisions taken earlier.
package pso
