package harvest

import (
	"sort"
	"time"
)

// Presets returns the built-in sources keyed by name.
func Presets() map[string]Source {
	return map[string]Source{
		"amazon": AmazonToronto(),
		"rogers": RogersCareers(),
	}
}

// PresetNames returns the built-in source names in sorted order.
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AmazonToronto pages amazon.jobs results around Toronto by offset.
func AmazonToronto() Source {
	return Source{
		Name:    "amazon",
		Label:   "Amazon Jobs",
		Company: "Amazon",
		BaseURL: "https://www.amazon.jobs/en/search",
		SiteURL: "https://www.amazon.jobs",
		Params: map[string]string{
			"sort":         "relevant",
			"country[]":    "CAN",
			"state[]":      "Ontario",
			"city[]":       "Toronto",
			"distanceType": "Mi",
			"radius":       "24km",
		},
		Pagination: Pagination{
			Mode:         PageModeOffset,
			Param:        "offset",
			PerPageParam: "result_limit",
		},
		Selectors: Selectors{
			Container:   "div.job-tile",
			Title:       "h3.job-title",
			Location:    "div.location-and-id",
			Description: "div.description",
			Link:        "a.job-link",
		},
		// Location cells read "Toronto, ON, CAN | Job ID: 2801234".
		LocationDelimiter: "|",
		PerPage:           10,
		MaxPages:          18,
		PageDelay:         Duration(3 * time.Second),
		NavTimeout:        Duration(60 * time.Second),
		WaitTimeout:       Duration(15 * time.Second),
	}.WithDefaults()
}

// RogersCareers pages jobs.rogers.com by page number.
func RogersCareers() Source {
	return Source{
		Name:    "rogers",
		Label:   "Rogers Careers",
		Company: "Rogers Communications",
		BaseURL: "https://jobs.rogers.com/search/",
		SiteURL: "https://jobs.rogers.com",
		Params:  map[string]string{"q": ""},
		Pagination: Pagination{
			Mode:      PageModeIndex,
			Param:     "page",
			FirstPage: 1,
		},
		Selectors: Selectors{
			Container: "tr.data-row",
			Title:     "span.jobTitle",
			Location:  "span.jobLocation",
			Link:      "a.jobTitle-link",
		},
		PerPage:     10,
		MaxPages:    10,
		PageDelay:   Duration(3 * time.Second),
		NavTimeout:  Duration(60 * time.Second),
		WaitTimeout: Duration(15 * time.Second),
	}.WithDefaults()
}
