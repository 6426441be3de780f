package factory

import (
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// PRESETS - Ready-made configuration for demos and fresh installs
// =============================================================================

// DemoBundleJSON is the seeded CityPets roster: six employees, one pet with
// an override, training restricted to two people and the Christmas days as
// holidays. JEAN carries a legacy holiday_rate_walk that is ignored.
const DemoBundleJSON = `{
  "employees": {
    "ROXANA": {
      "hotel": 25, "walk": 25, "overnight_hotel": 90, "cat_visit": 30,
      "pet_sitting_hourly": 17, "overnight_pet_sitting": 140,
      "dog_at_home": 75, "cat_at_home": 25,
      "transport": 25, "transport_km": 1.0,
      "training": 100, "management": 30,
      "holiday_rate_hotel": 30,
      "holiday_rate_overnight_hotel_hotel": 100
    },
    "JEAN": {
      "hotel": 25, "walk": 25, "overnight_hotel": 90, "cat_visit": 30,
      "pet_sitting": 17, "overnight_pet_sitting": 140,
      "dog_at_home": 75, "cat_at_home": 25,
      "transport": 25, "transport_km": 1.0,
      "holiday_rate_hotel": 30, "holiday_rate_walk": 30,
      "holiday_rate_overnight_hotel": 100
    },
    "SURIYA": {
      "hotel": 27, "walk": 27, "overnight_hotel": 90, "cat_visit": 30,
      "pet_sitting": 20, "overnight_pet_sitting": 140,
      "dog_at_home": 75, "cat_at_home": 25,
      "holiday_rate_hotel": 32,
      "holiday_rate_overnight_hotel": 100
    },
    "KUBA": {
      "hotel": 25, "walk": 25, "overnight_hotel": 90,
      "transport": 25, "transport_km": 1.2,
      "management": 30
    },
    "ANKITA": {
      "hotel": 25, "walk": 25, "cat_visit": 30,
      "pet_sitting": 17.33, "overnight_pet_sitting": 140,
      "training": 100
    },
    "PIYUSH": {
      "hotel": 25, "walk": 25, "overnight_hotel": 90,
      "dog_at_home": 75, "cat_at_home": 25
    }
  },
  "pet_rates": {
    "Burek": {"walk": 40, "pet_sitting": 22}
  },
  "restrictions": {
    "training": ["ROXANA", "ANKITA"],
    "management": ["ROXANA", "KUBA"]
  },
  "holidays": ["2025-12-24", "2025-12-25", "2025-12-26"]
}`

// DemoBundle parses DemoBundleJSON.
func DemoBundle() (payroll.Bundle, Warnings, error) {
	return ParseBundle([]byte(DemoBundleJSON))
}
