package types

import "sort"

// CategoryCode is one of the fixed registry of short category tokens.
type CategoryCode string

// categoryNames is the full registry of categories the remote bank
// organizes its records under. Loaded once; never mutated at runtime.
var categoryNames = map[CategoryCode]string{
	"cv":   "Cardiovascular",
	"resp": "Respiratory",
	"gi":   "Gastrointestinal",
	"neur": "Neurology",
	"rena": "Renal & Urology",
	"endo": "Endocrinology",
	"haem": "Haematology",
	"micr": "Microbiology & Infection",
	"rheu": "Rheumatology",
	"derm": "Dermatology",
	"psyc": "Psychiatry",
	"paed": "Paediatrics",
	"obgy": "Obstetrics & Gynaecology",
	"opht": "Ophthalmology",
	"ent":  "Ear, Nose & Throat",
	"phar": "Pharmacology",
}

// ValidCategory reports whether c is a registered category code.
func ValidCategory(c CategoryCode) bool {
	_, ok := categoryNames[c]
	return ok
}

// CategoryName returns the display name for a category code, or the code
// itself if unregistered.
func CategoryName(c CategoryCode) string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// AllCategories returns every registered category code in sorted order.
func AllCategories() []CategoryCode {
	codes := make([]CategoryCode, 0, len(categoryNames))
	for c := range categoryNames {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
