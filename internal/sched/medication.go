// Package sched raises medication reminders from a static daily schedule.
// It runs on its own cadence, independent of the device loop's tick rate.
package sched

import (
	"encoding/json"
	"fmt"
	"os"

	log "log/slog"
)

// Medication is one configured medicine. Loaded once at startup; the map
// never changes afterwards.
type Medication struct {
	Name         string   `json:"name"`
	Color        string   `json:"color"`
	Times        []string `json:"times"` // "HH:MM", 24h
	Dosage       string   `json:"dosage"`
	Instructions string   `json:"instructions,omitempty"`
}

// Schedule maps medication id to its configuration.
type Schedule map[string]Medication

// nepaliColors localizes pouch colors for the spoken reminder.
var nepaliColors = map[string]string{
	"red":    "rato",
	"green":  "hariyo",
	"blue":   "nilo",
	"yellow": "pahelo",
	"white":  "seto",
	"black":  "kalo",
}

// LoadSchedule reads the schedule JSON at path. A missing or unreadable
// file degrades to the built-in default schedule, which is written back so
// caregivers can edit it. This write-back is the only time the file is
// written.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Schedule missing, writing default", "path", path, "err", err)
		return writeDefault(path)
	}

	var s Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		log.Warn("Schedule unreadable, writing default", "path", path, "err", err)
		return writeDefault(path)
	}

	log.Info("Loaded medication schedule", "medications", len(s))
	return s, nil
}

func writeDefault(path string) (Schedule, error) {
	s := defaultSchedule()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return s, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return s, fmt.Errorf("write default schedule: %w", err)
	}
	return s, nil
}

func defaultSchedule() Schedule {
	return Schedule{
		"morning_bp": {
			Name:         "Blood Pressure Medicine",
			Color:        "green",
			Times:        []string{"08:00", "20:00"},
			Dosage:       "1 tablet",
			Instructions: "khana khanu aghi",
		},
		"diabetes": {
			Name:         "Diabetes Medicine",
			Color:        "red",
			Times:        []string{"07:30", "19:30"},
			Dosage:       "1 tablet",
			Instructions: "khana khanu aghi",
		},
	}
}

// ReminderMessage builds the spoken reminder line for a raised reminder.
func ReminderMessage(r *Reminder) string {
	color := nepaliColors[r.Color]
	if color == "" {
		color = r.Color
	}
	return fmt.Sprintf("aushadhi khane bela bhayo, %s gulcha liyera aaunu", color)
}
