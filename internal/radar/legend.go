package radar

import (
	"fmt"

	"atr-radar.klederson.com/internal/config"
	"atr-radar.klederson.com/internal/position"
)

func fmtRings(maxRange float64) string {
	return fmt.Sprintf("ring %.1fm", maxRange/float64(config.RingCount))
}

func fmtHeights(h position.Heights) string {
	return fmt.Sprintf("reader %.1fm tag %.1fm", h.Reader, h.Tag)
}
