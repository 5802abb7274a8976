package directory

import (
	"fmt"
	"sort"
)

// Teams maps Apiary team IDs to their display names.
var Teams = map[int64]string{
	1:  "RoboNav",
	2:  "BattleBots",
	3:  "Outreach",
	4:  "RoboCup",
	5:  "RoboRacing",
	6:  "Core",
	7:  "Mechanical Training",
	8:  "Software Training",
	9:  "Electrical Training",
	11: "Corporate",
	12: "Spring Training",
	13: "RoboWrestling",
	14: "Firmware Training",
	15: "Electrical Core",
	16: "Software Core",
	17: "Mechanical Core",
	18: "People Counter Import",
	19: "Finance",
}

// TeamName returns the display name for a team ID.
func TeamName(id int64) string {
	if name, ok := Teams[id]; ok {
		return name
	}
	return fmt.Sprintf("Team %d", id)
}

// TeamIDs returns every known team ID in ascending order.
func TeamIDs() []int64 {
	ids := make([]int64, 0, len(Teams))
	for id := range Teams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
