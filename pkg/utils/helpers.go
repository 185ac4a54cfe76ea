package utils

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// ParseKeyValueString splits "k=v<sep>k=v" into a map. Empty input gives an empty map.
func ParseKeyValueString(s string, separator string) (map[string]string, error) {
	result := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return result, nil
	}
	pairs := strings.Split(s, separator)
	for _, pair := range pairs {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid key-value pair: %s", pair)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("empty key in pair: %s", pair)
		}
		result[key] = value
	}
	return result, nil
}

// MapToKeyValueString is the inverse of ParseKeyValueString, with keys sorted.
func MapToKeyValueString(m map[string]string, separator string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(m))
	for _, key := range keys {
		pairs = append(pairs, key+"="+m[key])
	}
	return strings.Join(pairs, separator)
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func MeasureExecutionTime(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

func BasicLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}
