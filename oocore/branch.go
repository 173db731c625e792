package oocore

// Predictor is the branch-predictor interface fetch consults (spec §4.5:
// "Predict branches via a branch-predictor interface returning
// (predicted-target, update-info)").
type Predictor interface {
	Predict(rip uint64) (target uint64, updateInfo interface{})
	Update(updateInfo interface{}, taken bool, actualTarget uint64)
}

// StaticNotTakenPredictor always predicts fall-through, a minimal
// stand-in a test or a simple machine configuration can use in place of
// a full two-level predictor.
type StaticNotTakenPredictor struct{}

func (StaticNotTakenPredictor) Predict(rip uint64) (uint64, interface{}) { return 0, nil }
func (StaticNotTakenPredictor) Update(interface{}, bool, uint64)         {}
