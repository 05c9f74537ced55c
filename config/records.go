package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/wsd/core/building"
)

// RecordsConfig points at a directory of legacy record files:
// buildings.txt (name;production;estate-estate), batteries.txt
// (name;building;capacity) and consumers.txt (name;building;provider;demand).
type RecordsConfig struct {
	Dir string `json:"dir"`
}

// Records are the actors read from record files.
type Records struct {
	Buildings []BuildingConfig
	Batteries []BatteryConfig
	Consumers []ConsumerConfig
}

// LoadRecords reads the record files present in dir. Missing files are
// skipped.
func LoadRecords(dir string) (Records, error) {
	var recs Records
	err := readRecords(filepath.Join(dir, "buildings.txt"), 3, func(p []string) error {
		prod, err := strconv.ParseFloat(p[1], 64)
		if err != nil {
			return err
		}
		recs.Buildings = append(recs.Buildings, BuildingConfig{Name: p[0], Production: prod, Estates: building.ParseEstates(p[2])})
		return nil
	})
	if err != nil {
		return recs, err
	}
	err = readRecords(filepath.Join(dir, "batteries.txt"), 3, func(p []string) error {
		capacity, err := strconv.Atoi(p[2])
		if err != nil {
			return err
		}
		recs.Batteries = append(recs.Batteries, BatteryConfig{Name: p[0], Building: p[1], TotalCapacity: capacity})
		return nil
	})
	if err != nil {
		return recs, err
	}
	err = readRecords(filepath.Join(dir, "consumers.txt"), 4, func(p []string) error {
		demand, err := strconv.ParseFloat(p[3], 64)
		if err != nil {
			return err
		}
		recs.Consumers = append(recs.Consumers, ConsumerConfig{Name: p[0], Building: p[1], Provider: p[2], Demand: demand})
		return nil
	})
	return recs, err
}

func readRecords(path string, fields int, fn func([]string) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, ";")
		if len(parts) < fields {
			return fmt.Errorf("%s:%d: want %d fields, got %d", filepath.Base(path), line, fields, len(parts))
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := fn(parts); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	return sc.Err()
}
