package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type BuildingDef struct {
	Name       string   `yaml:"name"`
	Production float64  `yaml:"production"`
	Estates    []string `yaml:"estates"`
}

type BatteryDef struct {
	Name     string  `yaml:"name"`
	Building string  `yaml:"building"`
	Total    int     `yaml:"total_capacity"`
	Initial  float64 `yaml:"initial_capacity"`
	Drift    float64 `yaml:"drift"`
}

type ConsumerDef struct {
	Name          string  `yaml:"name"`
	Building      string  `yaml:"building"`
	Provider      string  `yaml:"provider"`
	Demand        float64 `yaml:"demand"`
	ProviderPrice float64 `yaml:"provider_price"`
}

// ChargingDef adds demand to a consumer before the offers of a period.
type ChargingDef struct {
	Period   int     `yaml:"period"`
	Consumer string  `yaml:"consumer"`
	Extra    float64 `yaml:"extra"`
}

// BuildingTotals are summed over every period.
type BuildingTotals struct {
	Demand   float64 `yaml:"demand"`
	Supplied float64 `yaml:"supplied"`
	Unmet    float64 `yaml:"unmet"`
	Imported float64 `yaml:"imported"`
	Excess   float64 `yaml:"excess"`
}

type BatteryExpect struct {
	Stored float64 `yaml:"stored"`
	State  string  `yaml:"state,omitempty"`
}

// ShortageCount counts shortage events per source.
type ShortageCount struct {
	Battery  int `yaml:"battery"`
	Provider int `yaml:"provider"`
}

type Expected struct {
	Buildings map[string]BuildingTotals `yaml:"buildings"`
	Batteries map[string]BatteryExpect  `yaml:"batteries,omitempty"`
	Shortages map[string]ShortageCount  `yaml:"shortages,omitempty"`
}

type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Seed        int64         `yaml:"seed"`
	Periods     int           `yaml:"periods"`
	Buildings   []BuildingDef `yaml:"buildings"`
	Batteries   []BatteryDef  `yaml:"batteries"`
	Consumers   []ConsumerDef `yaml:"consumers"`
	Charging    []ChargingDef `yaml:"charging,omitempty"`
	Expected    Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Periods <= 0 {
		return nil, fmt.Errorf("%s: periods must be positive", path)
	}
	return &sc, nil
}
