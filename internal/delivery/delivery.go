package delivery

import "strings"

type Tier string

const (
	TierColombo Tier = "colombo"
	TierSuburbs Tier = "suburbs"
	TierOthers  Tier = "others"
)

const capitalDistrict = "colombo"

var coreAreas = toSet(
	"Colombo 01", "Colombo 02", "Colombo 03", "Colombo 04", "Colombo 05",
	"Colombo 06", "Colombo 07", "Colombo 08", "Colombo 09", "Colombo 10",
	"Colombo 11", "Colombo 12", "Colombo 13", "Colombo 14", "Colombo 15",
	"Fort", "Pettah", "Kollupitiya", "Bambalapitiya", "Wellawatte", "Cinnamon Gardens",
	"Borella", "Dematagoda", "Maradana", "Grandpass", "Mattakkuliya", "Kotahena",
	"Havelock Town", "Narahenpita", "Kirulapone",
)

var suburbAreas = toSet(
	"Dehiwala", "Mount Lavinia", "Ratmalana", "Moratuwa", "Nugegoda", "Kotte",
	"Sri Jayawardenepura Kotte", "Rajagiriya", "Battaramulla", "Maharagama", "Boralesgamuwa",
	"Kolonnawa", "Wellampitiya", "Kelaniya", "Wattala", "Ja-Ela", "Kadawatha",
	"Malabe", "Kaduwela", "Athurugiriya", "Homagama", "Piliyandala", "Pannipitiya", "Kottawa",
)

func toSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[normalize(n)] = struct{}{}
	}
	return m
}

// normalize folds case and collapses runs of whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type Fees struct {
	Colombo int64 `json:"colombo"`
	Suburbs int64 `json:"suburbs"`
	Others  int64 `json:"others"`
}

type Resolver struct {
	Fees Fees
}

func NewResolver(fees Fees) *Resolver {
	return &Resolver{Fees: fees}
}

func (r *Resolver) Tier(district, city string) Tier {
	c := normalize(city)
	if normalize(district) == capitalDistrict {
		if _, ok := coreAreas[c]; ok {
			return TierColombo
		}
	}
	if _, ok := suburbAreas[c]; ok {
		return TierSuburbs
	}
	return TierOthers
}

// Fee is the flat delivery charge for the destination; free shipping wins
// over any tier.
func (r *Resolver) Fee(district, city string, freeShipping bool) int64 {
	if freeShipping {
		return 0
	}
	switch r.Tier(district, city) {
	case TierColombo:
		return r.Fees.Colombo
	case TierSuburbs:
		return r.Fees.Suburbs
	default:
		return r.Fees.Others
	}
}
