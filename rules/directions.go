package rules

import "strings"

// directionNames maps speedwalk codes to the move commands MUDs understand.
var directionNames = map[string]string{
	"n":  "north",
	"s":  "south",
	"e":  "east",
	"w":  "west",
	"ne": "northeast",
	"nw": "northwest",
	"se": "southeast",
	"sw": "southwest",
	"u":  "up",
	"d":  "down",
	"nu": "northup",
	"su": "southup",
	"eu": "eastup",
	"wu": "westup",
	"nd": "northdown",
	"sd": "southdown",
	"ed": "eastdown",
	"wd": "westdown",
}

// opposites is symmetric: every entry's value maps back to its key.
var opposites = map[string]string{
	"north":     "south",
	"south":     "north",
	"east":      "west",
	"west":      "east",
	"northeast": "southwest",
	"southwest": "northeast",
	"northwest": "southeast",
	"southeast": "northwest",
	"up":        "down",
	"down":      "up",
	"northup":   "southdown",
	"southdown": "northup",
	"southup":   "northdown",
	"northdown": "southup",
	"eastup":    "westdown",
	"westdown":  "eastup",
	"westup":    "eastdown",
	"eastdown":  "westup",
}

// Direction resolves a short movement code ("ne", "U") to its canonical name.
func Direction(code string) (string, bool) {
	name, ok := directionNames[strings.ToLower(code)]
	return name, ok
}

// Opposite returns the direction that undoes name. Names outside the table
// (literal commands such as "climb up") have no opposite.
func Opposite(name string) (string, bool) {
	opp, ok := opposites[strings.ToLower(name)]
	return opp, ok
}
