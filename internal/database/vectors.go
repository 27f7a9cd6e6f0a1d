package database

import (
	"fmt"
	"log"
	"math"
	"strings"
)

// vectorZeroString builds a zero vector string for the configured dims.
func (dm *DBManager) vectorZeroString() string {
	parts := make([]string, dm.config.EmbeddingDims)
	for i := range parts {
		parts[i] = "0.0"
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

// vectorToString converts a float32 slice to libsql's vector string format,
// validating dimensionality and sanitizing non-finite values.
func (dm *DBManager) vectorToString(numbers []float32) (string, error) {
	dims := dm.config.EmbeddingDims
	if len(numbers) != dims {
		return "", fmt.Errorf("vector must have exactly %d dimensions, got %d", dims, len(numbers))
	}

	strNumbers := make([]string, len(numbers))
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			log.Printf("Invalid vector value detected, using 0.0 instead of: %f", n)
			n = 0.0
		}
		strNumbers[i] = fmt.Sprintf("%f", n)
	}
	return fmt.Sprintf("[%s]", strings.Join(strNumbers, ", ")), nil
}
