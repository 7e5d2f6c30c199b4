package model

import (
	"fmt"
	"time"
)

// Linkage is the durable outcome of a successful match: one line item
// linked to one catalog product. At most one linkage ever exists per item;
// the first committed linkage wins and later attempts are rejected.
type Linkage struct {
	LinkedAt   time.Time
	ID         string
	ItemID     string
	Method     MatchMethod
	ProductID  int64
	Confidence float64
}

// Validate ensures the linkage has valid data before persistence.
func (l *Linkage) Validate() error {
	if l.ItemID == "" {
		return fmt.Errorf("linkage item id is required")
	}
	if l.ProductID == 0 {
		return fmt.Errorf("linkage product id is required")
	}
	if l.Method == "" {
		return fmt.Errorf("linkage method is required")
	}
	if l.Confidence < 0.0 || l.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %.2f", l.Confidence)
	}
	return nil
}
