package stats

// minAnomalySamples is the number of samples a window must hold before an
// anomaly verdict is meaningful.
const minAnomalySamples = 30

// deviationFactor is the number of standard deviations the latest sample
// must stray from the mean to count as an outlier.
const deviationFactor = 2.0

// Anomaly describes the outlier verdict for one metric window.
type Anomaly struct {
	Detected bool
	Latest   float64
	Mean     float64
	StdDev   float64
}

// Detect scores the latest sample of the window against its rolling mean.
// With fewer than 30 samples, or a zero standard deviation, the verdict is
// always "no anomaly".
func Detect(window *Rolling) Anomaly {
	latest, ok := window.Latest()
	if !ok || window.Len() < minAnomalySamples {
		return Anomaly{}
	}

	mean := window.Mean()
	stddev := window.StdDev()

	result := Anomaly{
		Latest: latest,
		Mean:   mean,
		StdDev: stddev,
	}

	if stddev > 0 && abs(latest-mean) > deviationFactor*stddev {
		result.Detected = true
	}

	return result
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
