package network

import (
	"strings"

	"github.com/okolovich/offsync/models"
)

// Link is the raw connectivity report delivered by platform glue code.
// Subtype carries the cellular generation ("5g", "lte", "3g", ...) when the
// platform exposes it.
type Link struct {
	Type              models.ConnectionType
	Subtype           string
	Connected         bool
	InternetReachable bool
}

// Classifier derives a full NetworkCondition from a raw link report.
// Implementations must be pure: same link in, same condition out.
type Classifier interface {
	Classify(link Link) models.NetworkCondition
}

// DefaultClassifier estimates strength, latency, and bandwidth from the
// connection type and cellular generation. The numbers are heuristics for
// retry-delay scaling, not measurements.
type DefaultClassifier struct{}

// NewDefaultClassifier returns the stock classifier.
func NewDefaultClassifier() Classifier {
	return DefaultClassifier{}
}

func (DefaultClassifier) Classify(link Link) models.NetworkCondition {
	cond := models.NetworkCondition{
		IsConnected:         link.Connected,
		Type:                link.Type,
		IsInternetReachable: link.InternetReachable,
	}

	if !link.Connected {
		cond.Type = models.ConnectionNone
		cond.Strength = models.SignalPoor
		return cond
	}

	switch link.Type {
	case models.ConnectionEthernet:
		cond.Strength = models.SignalExcellent
		cond.Latency = 10
		cond.Bandwidth = 100
	case models.ConnectionWifi:
		cond.Strength = models.SignalExcellent
		cond.Latency = 20
		cond.Bandwidth = 50
	case models.ConnectionCellular:
		cond.Strength, cond.Latency, cond.Bandwidth = classifyCellular(link.Subtype)
	default:
		// Unknown link types are assumed usable so the engine degrades
		// gracefully instead of stalling.
		cond.Strength = models.SignalGood
		cond.Latency = 100
		cond.Bandwidth = 10
	}

	return cond
}

func classifyCellular(subtype string) (models.SignalStrength, int, float64) {
	switch strings.ToLower(subtype) {
	case "5g", "nr":
		return models.SignalExcellent, 30, 75
	case "4g", "lte", "lte-a":
		return models.SignalGood, 50, 25
	case "3g", "hspa", "hsdpa", "umts":
		return models.SignalFair, 150, 3
	case "2g", "edge", "gprs":
		return models.SignalPoor, 400, 0.1
	default:
		return models.SignalGood, 80, 10
	}
}
