package outlets

import (
	"sort"
	"strings"

	"github.com/outlet_survey/backend/internal/models"
)

const (
	ValidationFilterValidated    = "validated"
	ValidationFilterNotValidated = "not-validated"
)

type Filters struct {
	Search     string `json:"search" form:"search"`
	Community  string `json:"community" form:"community"`
	Assembly   string `json:"assembly" form:"assembly"`
	OutletType string `json:"outlet_type" form:"outlet_type"`
	Validation string `json:"validation" form:"validation" validate:"omitempty,oneof=validated not-validated"`
}

type Counts struct {
	Validated    int `json:"validated"`
	NotValidated int `json:"not_validated"`
}

// ApplyFilters narrows outlets by f. Counts ignore the validation filter so the
// UI can show both totals while one of them is selected.
func ApplyFilters(all []models.Outlet, f Filters) ([]models.Outlet, Counts) {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var counts Counts
	out := make([]models.Outlet, 0, len(all))
	for _, o := range all {
		if search != "" && !strings.Contains(strings.ToLower(o.OutletName), search) {
			continue
		}
		if f.Community != "" && o.Community != f.Community {
			continue
		}
		if f.Assembly != "" && o.Assembly != f.Assembly {
			continue
		}
		if f.OutletType != "" && o.OutletType != f.OutletType {
			continue
		}

		if o.IsValidated {
			counts.Validated++
		} else {
			counts.NotValidated++
		}

		if f.Validation == ValidationFilterValidated && !o.IsValidated {
			continue
		}
		if f.Validation == ValidationFilterNotValidated && o.IsValidated {
			continue
		}
		out = append(out, o)
	}
	return out, counts
}

type FilterOptions struct {
	Communities []string `json:"communities"`
	Assemblies  []string `json:"assemblies"`
}

// Options lists the distinct communities and assemblies, sorted.
func Options(all []models.Outlet) FilterOptions {
	return FilterOptions{
		Communities: distinct(all, func(o models.Outlet) string { return o.Community }),
		Assemblies:  distinct(all, func(o models.Outlet) string { return o.Assembly }),
	}
}

func distinct(all []models.Outlet, key func(models.Outlet) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, o := range all {
		k := key(o)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
