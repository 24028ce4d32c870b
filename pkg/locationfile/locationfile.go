package locationfile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// File - структура JSON-файла с начальным набором локаций
type File struct {
	Locations []Entry `json:"locations"`
}

type Entry struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters int      `json:"radius_meters"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
}

// ParseLocationsJSON читает файл и возвращает локации в порядке следования
func ParseLocationsJSON(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	seen := make(map[string]bool, len(file.Locations))
	entries := make([]Entry, 0, len(file.Locations))
	for i, entry := range file.Locations {
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return nil, fmt.Errorf("location %d: name is required", i+1)
		}

		key := strings.ToLower(entry.Name)
		if seen[key] {
			return nil, fmt.Errorf("location %q is listed twice", entry.Name)
		}
		seen[key] = true

		entries = append(entries, entry)
	}

	return entries, nil
}
