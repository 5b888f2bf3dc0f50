package scraper

import (
	"regexp"
	"strings"
)

var knownNeighborhoods = []string{
	"Centrum", "Jordaan", "De Pijp", "Oost", "West", "Noord",
	"Zuid", "Oud-West", "Oud-Zuid", "IJburg", "Bos en Lommer",
	"Nieuw-West", "Zuidoost", "Amstelveen", "Diemen",
}

// postcodeNeighborhoods maps the four-digit part of an Amsterdam-area
// postcode to its neighborhood.
var postcodeNeighborhoods = map[string]string{
	"1011": "Centrum", "1012": "Centrum", "1013": "Centrum", "1014": "Centrum",
	"1015": "Centrum", "1016": "Centrum", "1017": "Centrum", "1018": "Centrum", "1019": "Centrum",
	"1021": "Noord", "1022": "Noord", "1023": "Noord", "1024": "Noord", "1025": "Noord",
	"1026": "Noord", "1027": "Noord", "1028": "Noord", "1029": "Noord", "1030": "Noord",
	"1031": "Noord", "1032": "Noord", "1033": "Noord", "1034": "Noord", "1035": "Noord",
	"1036": "Noord", "1037": "Noord", "1038": "Noord", "1039": "Noord",
	"1051": "Bos en Lommer", "1052": "Bos en Lommer", "1053": "Bos en Lommer",
	"1054": "Oud-West", "1055": "Bos en Lommer",
	"1056": "Nieuw-West", "1057": "Nieuw-West", "1058": "Nieuw-West", "1059": "Nieuw-West",
	"1060": "Nieuw-West", "1061": "Nieuw-West", "1062": "Nieuw-West", "1063": "Nieuw-West",
	"1064": "Nieuw-West", "1065": "Nieuw-West", "1066": "Nieuw-West", "1067": "Nieuw-West",
	"1068": "Nieuw-West", "1069": "Nieuw-West",
	"1071": "Oud-Zuid", "1072": "Oud-Zuid", "1073": "De Pijp", "1074": "De Pijp",
	"1075": "Oud-Zuid", "1076": "Oud-Zuid", "1077": "Oud-Zuid", "1078": "Oud-Zuid", "1079": "Zuid",
	"1081": "Zuid", "1082": "Zuid", "1083": "Zuid",
	"1086": "IJburg", "1087": "IJburg",
	"1091": "Oost", "1092": "Oost", "1093": "Oost", "1094": "Oost",
	"1095": "Oost", "1096": "Oost", "1097": "Oost", "1098": "Oost",
	"1101": "Zuidoost", "1102": "Zuidoost", "1103": "Zuidoost", "1104": "Zuidoost",
	"1105": "Zuidoost", "1106": "Zuidoost", "1107": "Zuidoost", "1108": "Zuidoost", "1109": "Zuidoost",
	"1111": "Diemen", "1112": "Diemen",
	"1181": "Amstelveen", "1182": "Amstelveen", "1183": "Amstelveen",
	"1184": "Amstelveen", "1185": "Amstelveen", "1186": "Amstelveen",
}

var spaceRegex = regexp.MustCompile(`\s+`)

// NeighborhoodFromPostcode resolves a Dutch postcode to a neighborhood
// name, or "" when the postcode is unknown.
func NeighborhoodFromPostcode(postcode string) string {
	digits := strings.ReplaceAll(postcode, " ", "")
	if len(digits) < 4 {
		return ""
	}
	return postcodeNeighborhoods[digits[:4]]
}

// NeighborhoodFromAddress scans an address for a known neighborhood
// name.
func NeighborhoodFromAddress(address string) string {
	lower := strings.ToLower(address)
	for _, n := range knownNeighborhoods {
		if strings.Contains(lower, strings.ToLower(n)) {
			return n
		}
	}
	return ""
}

func normalizePostcode(pc string) string {
	return spaceRegex.ReplaceAllString(strings.TrimSpace(pc), " ")
}
