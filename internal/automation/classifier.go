package automation

import "github.com/bonsailab/bonsaictl/internal/model"

// Classify maps a valid moisture reading onto a plant state and updates the
// consecutive-low-readings counter. Pure: same inputs, same outputs.
//
// Below half the threshold the plant is critical; below the threshold it
// needs water. At or above the threshold the counter resets and the state is
// healthy, or recently-watered while the cooldown is still active.
func Classify(moisture, threshold float64, canWater bool, lowStreak int) (model.PlantState, int) {
	switch {
	case moisture < threshold*0.5:
		return model.StateCritical, lowStreak + 1
	case moisture < threshold:
		return model.StateNeedsWater, lowStreak + 1
	case !canWater:
		return model.StateRecentlyWatered, 0
	default:
		return model.StateHealthy, 0
	}
}
