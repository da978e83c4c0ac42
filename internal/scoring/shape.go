package scoring

import "math"

// MaxHistory is how many prior composites TrendShape looks at.
const MaxHistory = 10

// TrendShape classifies the trajectory of prior composites (oldest first).
// First match wins: spike then drop, decline, steady incline, otherwise flat.
func TrendShape(history []float64) float64 {
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	if len(history) < 3 {
		return 50
	}
	deltas := make([]float64, len(history)-1)
	var sum float64
	for i := range deltas {
		deltas[i] = history[i+1] - history[i]
		sum += deltas[i]
	}
	avg := sum / float64(len(deltas))

	for i := 0; i+1 < len(deltas); i++ {
		if deltas[i] > 15 && deltas[i+1] < -10 {
			return 15
		}
	}
	if avg < -2 {
		return math.Max(30+(avg+2)/18*30, 0)
	}
	if avg > 0 {
		steady := true
		for _, d := range deltas {
			if math.Abs(d) > 20 {
				steady = false
				break
			}
		}
		if steady {
			return math.Min(70+avg/10*30, 100)
		}
	}
	return 50
}
