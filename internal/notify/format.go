package notify

import "fmt"

// Format renders the status message for the given occupants and count.
// Names are taken from the snapshot in arrival order; the count may exceed
// the number of listed names for the 5+ template. Pure function.
func Format(occupants []Occupant, count int) string {
	names := make([]string, 0, len(occupants))
	for _, o := range occupants {
		names = append(names, o.DisplayName)
	}

	switch {
	case count == 1 && len(names) >= 1:
		return names[0] + " joined voice chat"
	case count == 2 && len(names) >= 2:
		return fmt.Sprintf("%s and %s are in voice chat", names[0], names[1])
	case count == 3 && len(names) >= 3:
		return fmt.Sprintf("%s, %s, and %s are in voice chat", names[0], names[1], names[2])
	case count == 4 && len(names) >= 4:
		return fmt.Sprintf("%s, %s, %s, and %s are in voice chat", names[0], names[1], names[2], names[3])
	case count >= 5 && len(names) >= 3:
		return fmt.Sprintf("%s, %s, %s, and %d others are in voice chat", names[0], names[1], names[2], count-3)
	}

	return fmt.Sprintf("%d people are in voice chat", count)
}
